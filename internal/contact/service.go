// Package contact publishes the restaurant's WhatsApp link and its QR code.
package contact

import (
	"net/url"
	"strings"
	"sync"

	"github.com/skip2/go-qrcode"

	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

const (
	linkBase = "https://wa.me/"
	qrSize   = 256
)

type Info struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

type Service struct {
	info Info

	once sync.Once
	png  []byte
	err  error
}

// NewService validates the number. Only digits are kept, so "+971 50-000 0000"
// becomes "971500000000".
func NewService(number, message string) (*Service, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if len(digits) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "whatsapp number must carry at least 8 digits")
	}

	link := linkBase + digits
	if message = strings.TrimSpace(message); message != "" {
		link += "?text=" + url.QueryEscape(message)
	}
	return &Service{info: Info{Phone: digits, Message: message, Link: link}}, nil
}

func (s *Service) Info() Info {
	return s.info
}

// QRCode returns the PNG encoding of the link. It is rendered once.
func (s *Service) QRCode() ([]byte, error) {
	s.once.Do(func() {
		s.png, s.err = qrcode.Encode(s.info.Link, qrcode.Medium, qrSize)
		if s.err != nil {
			s.err = pkgerrors.Wrap(pkgerrors.CodeInternal, s.err, "render contact qr code")
		}
	})
	return s.png, s.err
}
