package contact

import (
	"bytes"
	"image/png"
	"testing"

	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

func TestNewServiceBuildsLink(t *testing.T) {
	svc, err := NewService("+971 50-000 0000", "Hi! I'd like to order")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info := svc.Info()
	if info.Phone != "971500000000" {
		t.Fatalf("expected digits only, got %q", info.Phone)
	}
	want := "https://wa.me/971500000000?text=Hi%21+I%27d+like+to+order"
	if info.Link != want {
		t.Fatalf("expected %q, got %q", want, info.Link)
	}
}

func TestNewServiceWithoutMessage(t *testing.T) {
	svc, err := NewService("971500000000", "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Info().Link != "https://wa.me/971500000000" {
		t.Fatalf("unexpected link %q", svc.Info().Link)
	}
}

func TestNewServiceRejectsShortNumber(t *testing.T) {
	_, err := NewService("12-34", "")
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestQRCodeIsPNG(t *testing.T) {
	svc, err := NewService("971500000000", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, err := svc.QRCode()
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(first))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != qrSize {
		t.Fatalf("expected %dpx wide, got %d", qrSize, img.Bounds().Dx())
	}
	second, _ := svc.QRCode()
	if !bytes.Equal(first, second) {
		t.Fatal("expected cached png")
	}
}
