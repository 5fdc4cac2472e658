package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
)

// MenuLookup resolves the menu item a cart line points at.
type MenuLookup interface {
	FindItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
}

type sessions interface {
	Load(ctx context.Context, userID uuid.UUID) ([]Item, error)
	Save(ctx context.Context, userID uuid.UUID, items []Item) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// View is the cart as returned to clients.
type View struct {
	Items      []Item          `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Service exposes the session-scoped cart of each user.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	Add(ctx context.Context, userID, menuItemID uuid.UUID) (*View, error)
	UpdateQuantity(ctx context.Context, userID uuid.UUID, itemID string, quantity int) (*View, error)
	Remove(ctx context.Context, userID uuid.UUID, itemID string) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
	// Snapshot returns the raw lines for checkout.
	Snapshot(ctx context.Context, userID uuid.UUID) ([]Item, error)
}

type service struct {
	sessions sessions
	menu     MenuLookup
	logg     *logger.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*userLock
}

// userLock serialises one user's cart writes. refs counts holders and
// waiters so the entry can be dropped once nobody needs it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewService wires the cart service.
func NewService(sessions sessions, menu MenuLookup, logg *logger.Logger) (Service, error) {
	if sessions == nil {
		return nil, fmt.Errorf("cart session repository required")
	}
	if menu == nil {
		return nil, fmt.Errorf("menu lookup required")
	}
	return &service{
		sessions: sessions,
		menu:     menu,
		logg:     logg,
		locks:    map[uuid.UUID]*userLock{},
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	store, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return viewOf(store), nil
}

func (s *service) Add(ctx context.Context, userID, menuItemID uuid.UUID) (*View, error) {
	item, err := s.menu.FindItem(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
	}
	if !item.IsAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item is not available").
			WithDetails(map[string]any{"menu_item_id": menuItemID.String()})
	}

	line := Item{ID: item.ID.String(), Name: item.Name, Price: item.Price}
	if item.ImageURL != nil {
		line.Image = *item.ImageURL
	}
	return s.mutate(ctx, userID, func(store *Store) { store.AddItem(line) })
}

func (s *service) UpdateQuantity(ctx context.Context, userID uuid.UUID, itemID string, quantity int) (*View, error) {
	return s.mutate(ctx, userID, func(store *Store) { store.UpdateQuantity(itemID, quantity) })
}

func (s *service) Remove(ctx context.Context, userID uuid.UUID, itemID string) (*View, error) {
	return s.mutate(ctx, userID, func(store *Store) { store.RemoveItem(itemID) })
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	unlock := s.lock(userID)
	defer unlock()
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) Snapshot(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	store, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return store.Items(), nil
}

// mutate applies fn under the user's lock and persists the result through an
// observer on the store.
func (s *service) mutate(ctx context.Context, userID uuid.UUID, fn func(*Store)) (*View, error) {
	unlock := s.lock(userID)
	defer unlock()

	store, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	var saveErr error
	stop := store.OnChange(func(items []Item) {
		saveErr = s.sessions.Save(ctx, userID, items)
	})
	fn(store)
	stop()

	if saveErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "save cart")
	}
	return viewOf(store), nil
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*Store, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	items, err := s.sessions.Load(ctx, userID)
	switch {
	case errors.Is(err, ErrCorruptSnapshot):
		s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), "cart snapshot corrupt, starting empty")
		return NewStore(), nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return NewStore(items...), nil
}

func (s *service) lock(userID uuid.UUID) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

func viewOf(store *Store) *View {
	items := store.Items()
	if items == nil {
		items = []Item{}
	}
	return &View{
		Items:      items,
		TotalItems: store.TotalItems(),
		TotalPrice: store.TotalPrice(),
	}
}
