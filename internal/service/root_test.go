package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/microwire-quality/internal/config"
	"github.com/iliyamo/microwire-quality/internal/logger"
	"github.com/iliyamo/microwire-quality/internal/model"
	"github.com/iliyamo/microwire-quality/internal/repository"
)

type fakeRootStore struct {
	existing map[string]model.User
	created  []repository.NewUser
}

func (f *fakeRootStore) GetByEmail(_ context.Context, email string) (model.User, error) {
	if u, ok := f.existing[email]; ok {
		return u, nil
	}
	return model.User{}, repository.ErrNotFound
}

func (f *fakeRootStore) Create(_ context.Context, nu repository.NewUser, _ int) (uint64, error) {
	f.created = append(f.created, nu)
	return uint64(len(f.created)), nil
}

func TestEnsureRoot(t *testing.T) {
	cfg := config.Config{RootEmail: "root@example.com", RootUsername: "root", RootPassword: "s3cret-pass", BcryptCost: 4}

	store := &fakeRootStore{}
	require.NoError(t, EnsureRoot(context.Background(), store, cfg, logger.Discard()))
	require.Len(t, store.created, 1)
	assert.Equal(t, model.RoleAdmin, store.created[0].Role)
	assert.Equal(t, "root", store.created[0].Username)

	store = &fakeRootStore{existing: map[string]model.User{"root@example.com": {ID: 1, Role: model.RoleAdmin}}}
	require.NoError(t, EnsureRoot(context.Background(), store, cfg, logger.Discard()))
	assert.Empty(t, store.created)

	store = &fakeRootStore{}
	require.NoError(t, EnsureRoot(context.Background(), store, config.Config{}, logger.Discard()))
	assert.Empty(t, store.created)
}
