package menu

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
)

type CategoryView struct {
	ID        uuid.UUID         `json:"id"`
	Slug      string            `json:"slug"`
	Name      string            `json:"name"`
	Emoji     string            `json:"emoji"`
	SortOrder int               `json:"sort_order"`
	Labels    map[string]string `json:"labels,omitempty"`
}

type ItemView struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	IsAvailable bool            `json:"is_available"`
	Badge       *string         `json:"badge,omitempty"`
}

// Snapshot is one committed view of the menu.
type Snapshot struct {
	Categories []CategoryView `json:"categories"`
	Items      []ItemView     `json:"items"`
	// Fallback is set when both attempts failed and static data was served.
	Fallback bool `json:"fallback"`
	// StaticCategories is set when the category list came from the static set.
	StaticCategories bool      `json:"static_categories"`
	Error            string    `json:"error,omitempty"`
	Generation       uint64    `json:"generation"`
	FetchedAt        time.Time `json:"fetched_at"`
}

// ItemRequest is the admin create/update body.
type ItemRequest struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Description *string         `json:"description" validate:"omitempty,max=1000"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    *string         `json:"image_url" validate:"omitempty,url"`
	CategoryID  *uuid.UUID      `json:"category_id"`
	IsAvailable *bool           `json:"is_available"`
	Badge       *string         `json:"badge" validate:"omitempty,max=40"`
}

// CategoryRequest is the admin create/update body for categories.
type CategoryRequest struct {
	Slug      string `json:"slug" validate:"required,max=40"`
	Name      string `json:"name" validate:"required,max=80"`
	Emoji     string `json:"emoji" validate:"max=16"`
	SortOrder int    `json:"sort_order" validate:"gte=0"`
}

func categoryFromModel(c models.Category) CategoryView {
	return CategoryView{
		ID:        c.ID,
		Slug:      c.Slug,
		Name:      c.Name,
		Emoji:     c.Emoji,
		SortOrder: c.SortOrder,
		Labels:    labelsFor(c.Slug),
	}
}

func itemFromModel(m models.MenuItem) ItemView {
	view := ItemView{
		ID:          m.ID,
		Name:        m.Name,
		Price:       m.Price,
		CategoryID:  m.CategoryID,
		IsAvailable: m.IsAvailable,
		Badge:       m.Badge,
	}
	if m.Description != nil {
		view.Description = *m.Description
	}
	if m.ImageURL != nil {
		view.ImageURL = *m.ImageURL
	}
	return view
}

// labelsFor returns the translated labels of a known slug.
func labelsFor(slug string) map[string]string {
	for _, c := range staticCategories {
		if c.slug == slug {
			out := make(map[string]string, len(c.labels))
			for k, v := range c.labels {
				out[k] = v
			}
			return out
		}
	}
	return nil
}
