package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
)

// UserDTO is a user as the API shows it. Credentials and the raw role
// metadata stay server side; the resolved role travels next to it.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	Active      bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewUser is a sign-up ready for storage. Accounts start active.
type NewUser struct {
	Email        string
	PasswordHash string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		Active:      u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func (n NewUser) model() *models.User {
	return &models.User{Email: n.Email, PasswordHash: n.PasswordHash, IsActive: true}
}
