package auth

import (
	"github.com/angelmondragon/foodorder-backend/internal/users"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

// SignUpRequest is the body of POST /api/v1/auth/signup.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required,max=120"`
}

// SignInRequest captures the user credentials sent to the sign-in endpoint.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the refresh token; the access token travels in the
// Authorization header.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse is returned by sign-in and refresh.
type TokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
	Role         enums.UserRole `json:"role"`
	IsAdmin      bool           `json:"is_admin"`
}

// SessionResponse describes the current identity.
type SessionResponse struct {
	User    *users.UserDTO `json:"user"`
	Role    enums.UserRole `json:"role"`
	IsAdmin bool           `json:"is_admin"`
}
