package checkout

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

// Line is a cart line as it reaches checkout.
type Line struct {
	ID        string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// InvalidLineDetail describes a line that cannot be ordered.
type InvalidLineDetail struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// ParseLineIDs returns the menu item id of every line, or CART_INVALID listing
// each line whose id is not a UUID or whose quantity is not positive.
func ParseLineIDs(lines []Line) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	var invalid []InvalidLineDetail
	for _, line := range lines {
		id, err := uuid.Parse(line.ID)
		switch {
		case err != nil:
			invalid = append(invalid, InvalidLineDetail{ID: line.ID, Name: line.Name, Reason: "malformed_id"})
		case line.Quantity <= 0:
			invalid = append(invalid, InvalidLineDetail{ID: line.ID, Name: line.Name, Reason: "bad_quantity"})
		default:
			ids = append(ids, id)
		}
	}
	if len(invalid) == 0 {
		return ids, nil
	}
	return nil, InvalidLines(invalid)
}

// InvalidLines builds the CART_INVALID error for the given lines.
func InvalidLines(invalid []InvalidLineDetail) error {
	return pkgerrors.New(pkgerrors.CodeCartInvalid, fmt.Sprintf("%d cart item(s) are no longer available", len(invalid))).
		WithDetails(map[string]any{"invalid_items": invalid})
}
