// Package zones manages delivery zones and their flat fees.
package zones

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

type repository interface {
	List(ctx context.Context, activeOnly bool) ([]models.DeliveryZone, error)
	Find(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error)
	Create(ctx context.Context, zone *models.DeliveryZone) error
	Update(ctx context.Context, zone *models.DeliveryZone) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type Request struct {
	Name        string          `json:"name" validate:"required,max=80"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	IsActive    *bool           `json:"is_active"`
}

type ZoneDTO struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	IsActive    bool            `json:"is_active"`
}

func FromModel(z models.DeliveryZone) ZoneDTO {
	return ZoneDTO{ID: z.ID, Name: z.Name, DeliveryFee: z.DeliveryFee, IsActive: z.IsActive}
}

type Service interface {
	ListActive(ctx context.Context) ([]ZoneDTO, error)
	ListAll(ctx context.Context) ([]ZoneDTO, error)
	// Resolve returns an active zone for checkout.
	Resolve(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error)
	Create(ctx context.Context, req Request) (*ZoneDTO, error)
	Update(ctx context.Context, id uuid.UUID, req Request) (*ZoneDTO, error)
	Toggle(ctx context.Context, id uuid.UUID) (*ZoneDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo repository
}

func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "zone repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListActive(ctx context.Context) ([]ZoneDTO, error) {
	return s.list(ctx, true)
}

func (s *service) ListAll(ctx context.Context) ([]ZoneDTO, error) {
	return s.list(ctx, false)
}

func (s *service) list(ctx context.Context, activeOnly bool) ([]ZoneDTO, error) {
	rows, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list zones")
	}
	out := make([]ZoneDTO, 0, len(rows))
	for _, z := range rows {
		out = append(out, FromModel(z))
	}
	return out, nil
}

func (s *service) Resolve(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery zone is required").
			WithDetails(map[string]any{"field": "zone_id"})
	}
	zone, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery zone not found").
				WithDetails(map[string]any{"field": "zone_id"})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load zone")
	}
	if !zone.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery zone is not available").
			WithDetails(map[string]any{"field": "zone_id"})
	}
	return zone, nil
}

func (s *service) Create(ctx context.Context, req Request) (*ZoneDTO, error) {
	zone := &models.DeliveryZone{IsActive: true}
	if err := apply(zone, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, zone); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create zone")
	}
	dto := FromModel(*zone)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req Request) (*ZoneDTO, error) {
	zone, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(zone, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, zone); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update zone")
	}
	dto := FromModel(*zone)
	return &dto, nil
}

func (s *service) Toggle(ctx context.Context, id uuid.UUID) (*ZoneDTO, error) {
	zone, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	zone.IsActive = !zone.IsActive
	if err := s.repo.Update(ctx, zone); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle zone")
	}
	dto := FromModel(*zone)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "zone not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete zone")
	}
	return nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error) {
	zone, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "zone not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load zone")
	}
	return zone, nil
}

func apply(zone *models.DeliveryZone, req Request) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if req.DeliveryFee.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery fee must not be negative")
	}
	zone.Name = name
	zone.DeliveryFee = req.DeliveryFee.Round(2)
	if req.IsActive != nil {
		zone.IsActive = *req.IsActive
	}
	return nil
}
