package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/foodorder-backend/internal/users"
	"github.com/angelmondragon/foodorder-backend/pkg/db/models"
	"github.com/angelmondragon/foodorder-backend/pkg/enums"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLister interface {
	List(ctx context.Context) ([]models.User, error)
}

type outcome string

const (
	outcomePromoted outcome = "promoted"
	outcomeNoUsers  outcome = "no_users"
	outcomeListed   outcome = "listed"
)

// run promotes target when given. Otherwise it lists every user and promotes
// the only one, if there is exactly one.
func run(ctx context.Context, tx txRunner, lister userLister, target string, out io.Writer) (outcome, error) {
	if target != "" {
		id, err := uuid.Parse(target)
		if err != nil {
			return "", fmt.Errorf("invalid user id %q: %w", target, err)
		}
		if err := promote(ctx, tx, id); err != nil {
			return "", err
		}
		fmt.Fprintf(out, "promoted %s to admin\n", id)
		return outcomePromoted, nil
	}

	all, err := lister.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}
	if len(all) == 0 {
		fmt.Fprintln(out, "no users found")
		return outcomeNoUsers, nil
	}

	fmt.Fprintln(out, "users:")
	for _, u := range all {
		fmt.Fprintf(out, "  %s %s\n", u.ID, u.Email)
	}
	if len(all) > 1 {
		fmt.Fprintln(out, "multiple users found; rerun with -user <id>")
		return outcomeListed, nil
	}

	if err := promote(ctx, tx, all[0].ID); err != nil {
		return "", err
	}
	fmt.Fprintf(out, "one user found; promoted %s to admin\n", all[0].ID)
	return outcomePromoted, nil
}

// promote sets the role metadata and the user_roles grant together.
func promote(ctx context.Context, tx txRunner, id uuid.UUID) error {
	return tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := users.NewRepository(tx)
		if err := repo.SetRoleMetadata(ctx, id, enums.UserRoleAdmin); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user %s not found", id)
			}
			return fmt.Errorf("set role metadata: %w", err)
		}
		if err := repo.GrantRole(ctx, id, enums.UserRoleAdmin); err != nil {
			return fmt.Errorf("grant admin role: %w", err)
		}
		return nil
	})
}
