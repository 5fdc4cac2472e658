package pagination

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 30, 0, 5, time.UTC), ID: uuid.New()}
	decoded, err := ParseCursor(EncodeCursor(original))
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !decoded.CreatedAt.Equal(original.CreatedAt) || decoded.ID != original.ID {
		t.Fatalf("cursor mismatch: %+v vs %+v", decoded, original)
	}
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	if c, err := ParseCursor("  "); c != nil || err != nil {
		t.Fatalf("expected nil cursor for blank input, got %v %v", c, err)
	}
	if _, err := ParseCursor("!!!"); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor for invalid base64, got %v", err)
	}
	if _, err := ParseCursor(base64.RawURLEncoding.EncodeToString([]byte("12.not-a-uuid"))); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("expected ErrInvalidCursor for bad id, got %v", err)
	}
}

func TestNormalizeLimit(t *testing.T) {
	if NormalizeLimit(0) != DefaultLimit {
		t.Fatalf("expected default limit")
	}
	if NormalizeLimit(MaxLimit+5) != MaxLimit {
		t.Fatalf("expected max limit cap")
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatalf("expected buffer of one")
	}
}

func TestPageSplitsBufferedRows(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	now := time.Now()
	rows := []row{{uuid.New(), now}, {uuid.New(), now.Add(-time.Minute)}, {uuid.New(), now.Add(-2 * time.Minute)}}
	key := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page, next := Page(rows, 2, key)
	if len(page) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(page))
	}
	if next == nil || next.ID != rows[1].id {
		t.Fatalf("expected cursor at last kept row, got %+v", next)
	}

	page, next = Page(rows[:2], 2, key)
	if len(page) != 2 || next != nil {
		t.Fatalf("expected final page without cursor")
	}
}
