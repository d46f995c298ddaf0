package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/iliyamo/microwire-quality/internal/config"
	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/repository"
)

// RootStore is the part of the user repository root seeding needs.
type RootStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, nu repository.NewUser, cost int) (uint64, error)
}

// EnsureRoot creates the configured root administrator when no user with
// that email exists.  An existing account is left untouched, whatever its
// role.  Without ROOT_EMAIL nothing happens.
func EnsureRoot(ctx context.Context, users RootStore, cfg config.Config, log *slog.Logger) error {
	if cfg.RootEmail == "" {
		return nil
	}
	u, err := users.GetByEmail(ctx, cfg.RootEmail)
	switch {
	case err == nil:
		if u.Role != model.RoleAdmin {
			log.Warn("root email belongs to a non-admin account", "email", cfg.RootEmail)
		}
		return nil
	case !errors.Is(err, repository.ErrNotFound):
		return err
	}
	id, err := users.Create(ctx, repository.NewUser{
		Email:    cfg.RootEmail,
		Username: cfg.RootUsername,
		Password: cfg.RootPassword,
		Role:     model.RoleAdmin,
	}, cfg.BcryptCost)
	if err != nil {
		return err
	}
	log.Info("root administrator created", "user_id", id, "email", cfg.RootEmail)
	return nil
}
