package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/foodorder-backend/internal/profiles"
	"github.com/angelmondragon/foodorder-backend/internal/users"
	pkgAuth "github.com/angelmondragon/foodorder-backend/pkg/auth"
	"github.com/angelmondragon/foodorder-backend/pkg/auth/session"
	"github.com/angelmondragon/foodorder-backend/pkg/config"
	"github.com/angelmondragon/foodorder-backend/pkg/db"
	"github.com/angelmondragon/foodorder-backend/pkg/db/dbtest"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
	redisclient "github.com/angelmondragon/foodorder-backend/pkg/redis"
)

var testJWT = config.JWTConfig{
	Secret:                 "secret",
	Issuer:                 "foodorder",
	ExpirationMinutes:      30,
	RefreshTokenTTLMinutes: 600,
}

type authFixture struct {
	svc      Service
	users    *users.Repository
	profiles *profiles.Repository
	sessions *session.Manager
	holder   *Holder
	roles    *RoleResolver
	redis    *miniredis.Miniredis
	tx       *db.Client
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	conn := dbtest.Open(t)
	mr := miniredis.RunT(t)
	manager, err := session.NewManager(redisclient.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()})), testJWT)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	userRepo := users.NewRepository(conn)
	holder := NewHolder(time.Minute)
	roles := NewRoleResolver(userRepo, time.Second, 0, nil)
	tx := db.Wrap(conn)
	svc, err := NewService(ServiceParams{
		Tx:             tx,
		UserRepo:       userRepo,
		SessionManager: manager,
		Roles:          roles,
		Holder:         holder,
		JWTConfig:      testJWT,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return &authFixture{
		svc:      svc,
		users:    userRepo,
		profiles: profiles.NewRepository(conn),
		sessions: manager,
		holder:   holder,
		roles:    roles,
		redis:    mr,
		tx:       tx,
	}
}

func TestSignUpCreatesUserAndProfile(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.SignUp(ctx, SignUpRequest{Email: " Noor@Example.com ", Password: "pa55word", FullName: "Noor"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Email != "noor@example.com" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}

	profile, err := f.profiles.FindByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if profile.FullName == nil || *profile.FullName != "Noor" {
		t.Fatalf("expected full name on profile, got %v", profile.FullName)
	}
	if profiles.Complete(profile) {
		t.Fatalf("fresh profile must not be complete")
	}

	_, err = f.svc.SignUp(ctx, SignUpRequest{Email: "noor@example.com", Password: "pa55word", FullName: "Noor"})
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}
}

func TestSignUpRejectsShortPassword(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.SignUp(context.Background(), SignUpRequest{Email: "a@example.com", Password: "123", FullName: "A"})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSignInUpgradesWeakHash(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	created, err := f.svc.SignUp(ctx, SignUpRequest{Email: "lina@example.com", Password: "secret-1", FullName: "Lina"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	before, _ := f.users.FindByID(ctx, created.ID)

	stronger, err := NewService(ServiceParams{
		Tx:             f.tx,
		UserRepo:       f.users,
		SessionManager: f.sessions,
		Roles:          f.roles,
		JWTConfig:      testJWT,
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 2, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	if _, err := stronger.SignIn(ctx, SignInRequest{Email: "lina@example.com", Password: "secret-1"}); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	after, _ := f.users.FindByID(ctx, created.ID)
	if after.PasswordHash == before.PasswordHash {
		t.Fatal("expected hash to be upgraded")
	}
	if _, err := stronger.SignIn(ctx, SignInRequest{Email: "lina@example.com", Password: "secret-1"}); err != nil {
		t.Fatalf("sign in with upgraded hash: %v", err)
	}
}

func TestSignInIssuesTokensAndCachesIdentity(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SignUp(ctx, SignUpRequest{Email: "omar@example.com", Password: "secret-1", FullName: "Omar"}); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	resp, err := f.svc.SignIn(ctx, SignInRequest{Email: "OMAR@example.com", Password: "secret-1"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Role != enums.UserRoleCustomer || resp.IsAdmin {
		t.Fatalf("expected customer role, got %s", claims.Role)
	}
	ok, err := f.sessions.HasSession(ctx, claims.ID)
	if err != nil || !ok {
		t.Fatalf("expected redis session for jti, ok=%v err=%v", ok, err)
	}
	if _, cached := f.holder.Get(claims.ID); !cached {
		t.Fatalf("expected holder to cache the identity")
	}
}

func TestSignInWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SignUp(ctx, SignUpRequest{Email: "omar@example.com", Password: "secret-1", FullName: "Omar"}); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	for _, req := range []SignInRequest{
		{Email: "omar@example.com", Password: "wrong"},
		{Email: "nobody@example.com", Password: "secret-1"},
		{Email: "  ", Password: "secret-1"},
	} {
		if _, err := f.svc.SignIn(ctx, req); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
			t.Fatalf("expected unauthorized for %+v, got %v", req, err)
		}
	}
}

func TestSignInReportsAdminFromRoleMetadata(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user, err := f.svc.SignUp(ctx, SignUpRequest{Email: "chef@example.com", Password: "secret-1", FullName: "Chef"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := f.users.SetRoleMetadata(ctx, user.ID, enums.UserRoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}

	resp, err := f.svc.SignIn(ctx, SignInRequest{Email: "chef@example.com", Password: "secret-1"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if !resp.IsAdmin || resp.Role != enums.UserRoleAdmin {
		t.Fatalf("expected admin, got role=%s", resp.Role)
	}
}

func TestSignOutRevokesAndClearsHolder(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SignUp(ctx, SignUpRequest{Email: "sara@example.com", Password: "secret-1", FullName: "Sara"}); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	resp, err := f.svc.SignIn(ctx, SignInRequest{Email: "sara@example.com", Password: "secret-1"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	claims, _ := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)

	if err := f.svc.SignOut(ctx, claims.ID); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if ok, _ := f.sessions.HasSession(ctx, claims.ID); ok {
		t.Fatalf("session should be revoked")
	}
	if _, cached := f.holder.Get(claims.ID); cached {
		t.Fatalf("holder should be cleared")
	}
}

func TestSignOutSucceedsWhenStoreIsDown(t *testing.T) {
	f := newAuthFixture(t)
	f.holder.Set("access-1", Identity{})
	f.redis.Close()

	if err := f.svc.SignOut(context.Background(), "access-1"); err != nil {
		t.Fatalf("sign out should succeed locally, got %v", err)
	}
	if f.holder.Len() != 0 {
		t.Fatalf("holder should be cleared")
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	if _, err := f.svc.SignUp(ctx, SignUpRequest{Email: "yusuf@example.com", Password: "secret-1", FullName: "Yusuf"}); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	first, err := f.svc.SignIn(ctx, SignInRequest{Email: "yusuf@example.com", Password: "secret-1"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	second, err := f.svc.Refresh(ctx, first.AccessToken, first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	oldClaims, _ := pkgAuth.ParseAccessToken(testJWT, first.AccessToken)
	newClaims, _ := pkgAuth.ParseAccessToken(testJWT, second.AccessToken)
	if oldClaims.ID == newClaims.ID {
		t.Fatalf("expected a new access id")
	}
	if ok, _ := f.sessions.HasSession(ctx, oldClaims.ID); ok {
		t.Fatalf("old session should be gone")
	}
	if _, cached := f.holder.Get(oldClaims.ID); cached {
		t.Fatalf("old identity should be dropped")
	}

	if _, err := f.svc.Refresh(ctx, first.AccessToken, first.RefreshToken); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("reusing a rotated refresh token must fail, got %v", err)
	}
}

func TestSessionReloadsAndLogsOutOnFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user, err := f.svc.SignUp(ctx, SignUpRequest{Email: "huda@example.com", Password: "secret-1", FullName: "Huda"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	got, err := f.svc.Session(ctx, user.ID, "access-x")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if got.User.ID != user.ID || got.IsAdmin {
		t.Fatalf("unexpected session %+v", got)
	}
	if _, cached := f.holder.Get("access-x"); !cached {
		t.Fatalf("expected holder entry")
	}

	f.holder.Set("access-y", Identity{User: &users.UserDTO{ID: uuid.New()}})
	if _, err := f.svc.Session(ctx, uuid.New(), "access-y"); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}
	if _, cached := f.holder.Get("access-y"); cached {
		t.Fatalf("failed restore must clear the holder")
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}
