package profiles

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/foodorder-backend/pkg/db/dbtest"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

func strPtr(v string) *string { return &v }

func TestServiceGetReturnsEmptyProfile(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	userID := uuid.New()
	got, err := svc.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, got.UserID)
	assert.False(t, got.Complete)
	assert.Equal(t, []string{"phone", "address", "location_type"}, got.Missing)
}

func TestServiceUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	userID := uuid.New()

	_, err = svc.Upsert(ctx, userID, UpsertRequest{FullName: strPtr("Layla"), Phone: strPtr("  ")})
	require.NoError(t, err)

	got, err := svc.Upsert(ctx, userID, UpsertRequest{
		FullName:     strPtr("Layla H"),
		Phone:        strPtr("+971500000000"),
		Address:      strPtr("Marina Tower 3, Apt 1204"),
		LocationType: strPtr("Apartment"),
	})
	require.NoError(t, err)
	assert.True(t, got.Complete)

	reloaded, err := svc.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "Layla H", *reloaded.FullName)
	assert.Equal(t, "apartment", *reloaded.LocationType)
	assert.Empty(t, reloaded.Missing)
}

func TestServiceUpsertRejectsUnknownLocation(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	_, err = svc.Upsert(context.Background(), uuid.New(), UpsertRequest{LocationType: strPtr("yacht")})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

type brokenRepo struct{}

func (brokenRepo) FindByUserID(context.Context, uuid.UUID) (*models.Profile, error) {
	return nil, errors.New("connection reset")
}
func (brokenRepo) Upsert(context.Context, *models.Profile) error { return errors.New("connection reset") }

func TestServiceDependencyErrors(t *testing.T) {
	svc, err := NewService(brokenRepo{})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))
	_, err = svc.Get(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestComplete(t *testing.T) {
	house := enums.LocationTypeHouse
	cases := map[string]struct {
		profile *models.Profile
		want    bool
	}{
		"nil":           {profile: nil, want: false},
		"missing phone": {profile: &models.Profile{Address: strPtr("Villa 9"), LocationType: &house}, want: false},
		"blank address": {profile: &models.Profile{Phone: strPtr("0501"), Address: strPtr(" "), LocationType: &house}, want: false},
		"no location":   {profile: &models.Profile{Phone: strPtr("0501"), Address: strPtr("Villa 9")}, want: false},
		"complete":      {profile: &models.Profile{Phone: strPtr("0501"), Address: strPtr("Villa 9"), LocationType: &house}, want: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Complete(tc.profile))
		})
	}
}
