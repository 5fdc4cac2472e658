package profiles

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
)

// UpsertRequest is the body of PUT /api/v1/profile.
type UpsertRequest struct {
	FullName     *string `json:"full_name" validate:"omitempty,max=120"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Phone        *string `json:"phone" validate:"omitempty,min=6,max=32"`
	Address      *string `json:"address" validate:"omitempty,max=500"`
	LocationType *string `json:"location_type" validate:"omitempty,oneof=house apartment office hotel other"`
}

type ProfileDTO struct {
	UserID       uuid.UUID `json:"user_id"`
	FullName     *string   `json:"full_name"`
	Email        *string   `json:"email"`
	Phone        *string   `json:"phone"`
	Address      *string   `json:"address"`
	LocationType *string   `json:"location_type"`
	Complete     bool      `json:"complete"`
	Missing      []string  `json:"missing,omitempty"`
}

func FromModel(p *models.Profile) *ProfileDTO {
	dto := &ProfileDTO{
		UserID:   p.UserID,
		FullName: p.FullName,
		Email:    p.Email,
		Phone:    p.Phone,
		Address:  p.Address,
		Complete: Complete(p),
		Missing:  Missing(p),
	}
	if p.LocationType != nil {
		lt := p.LocationType.String()
		dto.LocationType = &lt
	}
	return dto
}
