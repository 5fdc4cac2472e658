package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/internal/profiles"
	"github.com/angelmondragon/foodorder-backend/internal/users"
	pkgAuth "github.com/angelmondragon/foodorder-backend/pkg/auth"
	"github.com/angelmondragon/foodorder-backend/pkg/auth/session"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	"github.com/angelmondragon/foodorder-backend/pkg/logger"
	"github.com/angelmondragon/foodorder-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controllers.
type Service interface {
	SignUp(ctx context.Context, req SignUpRequest) (*users.UserDTO, error)
	SignIn(ctx context.Context, req SignInRequest) (*TokenResponse, error)
	SignOut(ctx context.Context, accessID string) error
	Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenResponse, error)
	Session(ctx context.Context, userID uuid.UUID, accessID string) (*SessionResponse, error)
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (session.Issued, error)
	Revoke(ctx context.Context, accessID string) error
}

type roleResolver interface {
	Role(ctx context.Context, userID uuid.UUID) enums.UserRole
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Tx             txRunner
	UserRepo       userRepository
	SessionManager sessionManager
	Roles          roleResolver
	Holder         *Holder
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	SessionTimeout time.Duration
	Logger         *logger.Logger
}

type service struct {
	tx             txRunner
	users          userRepository
	session        sessionManager
	roles          roleResolver
	holder         *Holder
	jwtCfg         config.JWTConfig
	passwordCfg    config.PasswordConfig
	sessionTimeout time.Duration
	logg           *logger.Logger
	now            func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Roles == nil {
		return nil, fmt.Errorf("role resolver is required")
	}
	holder := params.Holder
	if holder == nil {
		holder = NewHolder(0)
	}
	timeout := params.SessionTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &service{
		tx:             params.Tx,
		users:          params.UserRepo,
		session:        params.SessionManager,
		roles:          params.Roles,
		holder:         holder,
		jwtCfg:         params.JWTConfig,
		passwordCfg:    params.PasswordConfig,
		sessionTimeout: timeout,
		logg:           params.Logger,
		now:            time.Now,
	}, nil
}

// SignUp creates the user and an empty delivery profile in one transaction.
func (s *service) SignUp(ctx context.Context, req SignUpRequest) (*users.UserDTO, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := security.ValidatePassword(req.Password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	hash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.NewUser{Email: email, PasswordHash: hash})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		fullName := strings.TrimSpace(req.FullName)
		profile := &models.Profile{UserID: user.ID, Email: &email}
		if fullName != "" {
			profile.FullName = &fullName
		}
		if err := profiles.NewRepository(tx).Upsert(ctx, profile); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create profile")
		}
		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users.FromModel(created), nil
}

func (s *service) SignIn(ctx context.Context, req SignInRequest) (*TokenResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now

	accessID := session.NewAccessID()
	refreshToken, err := s.session.Generate(ctx, accessID, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return s.issue(ctx, user, accessID, refreshToken, now)
}

// SignOut clears the cached identity even when the session store is
// unreachable, so the caller is logged out locally either way.
func (s *service) SignOut(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	s.holder.Clear(accessID)
	if err := s.session.Revoke(ctx, accessID); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "revoke session failed")
	}
	return nil
}

func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*TokenResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	s.holder.Clear(claims.ID)
	issued, err := s.session.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	user, err := s.users.FindByID(ctx, issued.UserID)
	if err != nil {
		_ = s.session.Revoke(ctx, issued.AccessID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	return s.issue(ctx, user, issued.AccessID, issued.RefreshToken, s.now().UTC())
}

// Session serves the cached identity or reloads it within the session
// timeout. Any failure logs the session out.
func (s *service) Session(ctx context.Context, userID uuid.UUID, accessID string) (*SessionResponse, error) {
	if userID == uuid.Nil || strings.TrimSpace(accessID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if cached, ok := s.holder.Get(accessID); ok && cached.User != nil && cached.User.ID == userID {
		return &SessionResponse{User: cached.User, Role: cached.Role, IsAdmin: cached.IsAdmin}, nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.sessionTimeout)
	defer cancel()

	user, err := s.users.FindByID(loadCtx, userID)
	if err != nil || !user.IsActive {
		s.holder.Clear(accessID)
		if err != nil && s.logg != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(s.logg.WithField(ctx, "reason", err.Error()), "session restore failed")
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session expired")
	}

	role := s.roles.Role(loadCtx, user.ID)
	identity := Identity{User: users.FromModel(user), Role: role, IsAdmin: role == enums.UserRoleAdmin}
	s.holder.Set(accessID, identity)
	return &SessionResponse{User: identity.User, Role: identity.Role, IsAdmin: identity.IsAdmin}, nil
}

func (s *service) issue(ctx context.Context, user *models.User, accessID, refreshToken string, now time.Time) (*TokenResponse, error) {
	role := s.roles.Role(ctx, user.ID)
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	dto := users.FromModel(user)
	isAdmin := role == enums.UserRoleAdmin
	s.holder.Set(accessID, Identity{User: dto, Role: role, IsAdmin: isAdmin})

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         dto,
		Role:         role,
		IsAdmin:      isAdmin,
	}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := normalizeEmail(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		s.rehash(ctx, user, password)
	}
	return user, nil
}

// rehash upgrades a hash produced with older parameters. Failure only logs;
// the old hash keeps working.
func (s *service) rehash(ctx context.Context, user *models.User, password string) {
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "password rehash skipped")
		return
	}
	user.PasswordHash = hash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
