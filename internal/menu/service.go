package menu

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

type repository interface {
	Source
	FindItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	CreateItem(ctx context.Context, item *models.MenuItem) error
	UpdateItem(ctx context.Context, item *models.MenuItem) error
	DeleteItem(ctx context.Context, id uuid.UUID) error
	FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	CreateCategory(ctx context.Context, cat *models.Category) error
	UpdateCategory(ctx context.Context, cat *models.Category) error
}

// Service serves the public menu and the admin menu screens.
type Service interface {
	Menu(ctx context.Context) Snapshot
	ListItems(ctx context.Context) ([]ItemView, error)
	CreateItem(ctx context.Context, req ItemRequest) (*ItemView, error)
	UpdateItem(ctx context.Context, id uuid.UUID, req ItemRequest) (*ItemView, error)
	DeleteItem(ctx context.Context, id uuid.UUID) error
	ToggleAvailability(ctx context.Context, id uuid.UUID) (*ItemView, error)
	ListCategories(ctx context.Context) ([]CategoryView, error)
	CreateCategory(ctx context.Context, req CategoryRequest) (*CategoryView, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, req CategoryRequest) (*CategoryView, error)
}

type service struct {
	repo   repository
	loader *Loader
}

func NewService(repo repository, loader *Loader) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "menu repository required")
	}
	if loader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "menu loader required")
	}
	return &service{repo: repo, loader: loader}, nil
}

func (s *service) Menu(ctx context.Context) Snapshot {
	return s.loader.Get(ctx)
}

func (s *service) ListItems(ctx context.Context) ([]ItemView, error) {
	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list menu items")
	}
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, itemFromModel(it))
	}
	return out, nil
}

func (s *service) CreateItem(ctx context.Context, req ItemRequest) (*ItemView, error) {
	item := &models.MenuItem{IsAvailable: true}
	if err := applyItem(item, req); err != nil {
		return nil, err
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create menu item")
	}
	s.loader.Invalidate(ctx)
	view := itemFromModel(*item)
	return &view, nil
}

func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, req ItemRequest) (*ItemView, error) {
	item, err := s.findItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyItem(item, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update menu item")
	}
	s.loader.Invalidate(ctx)
	view := itemFromModel(*item)
	return &view, nil
}

func (s *service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteItem(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete menu item")
	}
	s.loader.Invalidate(ctx)
	return nil
}

func (s *service) ToggleAvailability(ctx context.Context, id uuid.UUID) (*ItemView, error) {
	item, err := s.findItem(ctx, id)
	if err != nil {
		return nil, err
	}
	item.IsAvailable = !item.IsAvailable
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle availability")
	}
	s.loader.Invalidate(ctx)
	view := itemFromModel(*item)
	return &view, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryView, error) {
	cats, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryFromModel(c))
	}
	return out, nil
}

func (s *service) CreateCategory(ctx context.Context, req CategoryRequest) (*CategoryView, error) {
	cat := &models.Category{}
	applyCategory(cat, req)
	if err := s.repo.CreateCategory(ctx, cat); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	s.loader.Invalidate(ctx)
	view := categoryFromModel(*cat)
	return &view, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, req CategoryRequest) (*CategoryView, error) {
	cat, err := s.repo.FindCategory(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	applyCategory(cat, req)
	if err := s.repo.UpdateCategory(ctx, cat); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
	}
	s.loader.Invalidate(ctx)
	view := categoryFromModel(*cat)
	return &view, nil
}

func (s *service) findItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	item, err := s.repo.FindItem(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
	}
	return item, nil
}

func applyItem(item *models.MenuItem, req ItemRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if req.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative").
			WithDetails(map[string]any{"field": "price"})
	}
	item.Name = name
	item.Description = optional(req.Description)
	item.Price = req.Price.Round(2)
	item.ImageURL = optional(req.ImageURL)
	item.CategoryID = req.CategoryID
	item.Badge = optional(req.Badge)
	if req.IsAvailable != nil {
		item.IsAvailable = *req.IsAvailable
	}
	return nil
}

func applyCategory(cat *models.Category, req CategoryRequest) {
	cat.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	cat.Name = strings.TrimSpace(req.Name)
	cat.Emoji = strings.TrimSpace(req.Emoji)
	cat.SortOrder = req.SortOrder
}

func optional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

