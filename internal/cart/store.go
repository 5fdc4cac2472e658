package cart

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Item is one cart line. ID is the menu item id as the client sent it, so it
// may fail to parse until checkout validates it.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image,omitempty"`
}

// Subtotal is price × quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Store is an ordered, mutex-guarded set of cart lines. Observers run
// synchronously after every mutation, outside the lock.
type Store struct {
	mu        sync.Mutex
	items     []Item
	observers map[int]func([]Item)
	nextObs   int
}

// NewStore seeds a store, dropping lines with a non-positive quantity.
func NewStore(items ...Item) *Store {
	s := &Store{observers: map[int]func([]Item){}}
	for _, item := range items {
		if item.Quantity > 0 {
			s.items = append(s.items, item)
		}
	}
	return s
}

// OnChange registers fn and returns a function that removes it.
func (s *Store) OnChange(fn func([]Item)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

// AddItem increments the line for item.ID or appends it with quantity 1.
func (s *Store) AddItem(item Item) {
	s.mutate(func() {
		for i := range s.items {
			if s.items[i].ID == item.ID {
				s.items[i].Quantity++
				return
			}
		}
		item.Quantity = 1
		s.items = append(s.items, item)
	})
}

// UpdateQuantity sets the quantity of id. Zero or less removes the line.
func (s *Store) UpdateQuantity(id string, quantity int) {
	if quantity <= 0 {
		s.RemoveItem(id)
		return
	}
	s.mutate(func() {
		for i := range s.items {
			if s.items[i].ID == id {
				s.items[i].Quantity = quantity
				return
			}
		}
	})
}

func (s *Store) RemoveItem(id string) {
	s.mutate(func() {
		kept := s.items[:0]
		for _, item := range s.items {
			if item.ID != id {
				kept = append(kept, item)
			}
		}
		s.items = kept
	})
}

func (s *Store) Clear() {
	s.mutate(func() {
		s.items = nil
	})
}

// Items returns a copy of the lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	snapshot := s.snapshotLocked()
	observers := make([]func([]Item), 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.mu.Unlock()

	for _, obs := range observers {
		obs(snapshot)
	}
}

func (s *Store) snapshotLocked() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}
