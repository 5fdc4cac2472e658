package profiles

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

type repository interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
}

// Service reads and edits the delivery profile of the signed-in user.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
	Upsert(ctx context.Context, userID uuid.UUID, req UpsertRequest) (*ProfileDTO, error)
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "profiles repository required")
	}
	return &service{repo: repo}, nil
}

// Get returns an empty profile rather than NOT_FOUND so the client can render
// the completion form.
func (s *service) Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	profile, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return FromModel(&models.Profile{UserID: userID}), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return FromModel(profile), nil
}

func (s *service) Upsert(ctx context.Context, userID uuid.UUID, req UpsertRequest) (*ProfileDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	profile := &models.Profile{
		UserID:   userID,
		FullName: trimmed(req.FullName),
		Email:    trimmed(req.Email),
		Phone:    trimmed(req.Phone),
		Address:  trimmed(req.Address),
	}
	if req.LocationType != nil && strings.TrimSpace(*req.LocationType) != "" {
		lt, err := enums.ParseLocationType(strings.ToLower(strings.TrimSpace(*req.LocationType)))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid location type").
				WithDetails(map[string]any{"field": "location_type"})
		}
		profile.LocationType = &lt
	}
	if err := s.repo.Upsert(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save profile")
	}
	return FromModel(profile), nil
}

// Complete reports whether the profile carries everything checkout needs.
func Complete(profile *models.Profile) bool {
	if profile == nil {
		return false
	}
	return nonEmpty(profile.Phone) && nonEmpty(profile.Address) &&
		profile.LocationType != nil && profile.LocationType.IsValid()
}

// Missing lists the fields Complete found empty.
func Missing(profile *models.Profile) []string {
	if profile == nil {
		return []string{"phone", "address", "location_type"}
	}
	var out []string
	if !nonEmpty(profile.Phone) {
		out = append(out, "phone")
	}
	if !nonEmpty(profile.Address) {
		out = append(out, "address")
	}
	if profile.LocationType == nil || !profile.LocationType.IsValid() {
		out = append(out, "location_type")
	}
	return out
}

func nonEmpty(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
