package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/repository"
)

type memStore struct {
	users    map[string]*model.User
	promoted []string
}

func newMemStore(users ...*model.User) *memStore {
	s := &memStore{users: make(map[string]*model.User)}
	for _, u := range users {
		s.users[u.Email] = u
	}
	return s
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *memStore) CreateUser(_ context.Context, user *model.User) error {
	if _, ok := s.users[user.Email]; ok {
		return repository.ErrEmailExists
	}
	s.users[user.Email] = user
	return nil
}

func (s *memStore) SetUserRole(_ context.Context, id string, role model.Role) (*model.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			u.Role = role
			s.promoted = append(s.promoted, id)
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func TestEnsureAdmin_CreatesAccount(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	out, err := ensureAdmin(context.Background(), store, "  Admin@Aroosi.App ", "changeme123", model.PlanPremiumPlus)
	require.NoError(t, err)

	assert.True(t, out.Created)
	assert.Equal(t, "admin@aroosi.app", out.Email)
	assert.Equal(t, model.RoleAdmin, out.Role)

	user := store.users["admin@aroosi.app"]
	require.NotNil(t, user)
	assert.Equal(t, model.PlanPremiumPlus, user.Plan)
	ok, err := auth.VerifyPassword("changeme123", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureAdmin_PromotesExisting(t *testing.T) {
	t.Parallel()

	store := newMemStore(&model.User{ID: "u1", Email: "ops@aroosi.app", Role: model.RoleUser, Plan: model.PlanFree})
	out, err := ensureAdmin(context.Background(), store, "ops@aroosi.app", "", model.PlanPremiumPlus)
	require.NoError(t, err)

	assert.False(t, out.Created)
	assert.Equal(t, model.RoleAdmin, out.Role)
	assert.Equal(t, model.PlanFree, out.Plan)
	assert.Equal(t, []string{"u1"}, store.promoted)

	// Running again is a no-op.
	_, err = ensureAdmin(context.Background(), store, "ops@aroosi.app", "", model.PlanPremiumPlus)
	require.NoError(t, err)
	assert.Len(t, store.promoted, 1)
}

func TestEnsureAdmin_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		email    string
		password string
		plan     model.Plan
	}{
		{"bad email", "not-an-email", "changeme123", model.PlanFree},
		{"weak password", "new@aroosi.app", "short", model.PlanFree},
		{"unknown plan", "new@aroosi.app", "changeme123", model.Plan("gold")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			_, err := ensureAdmin(context.Background(), store, tt.email, tt.password, tt.plan)
			require.Error(t, err)
			assert.Empty(t, store.users)
		})
	}
}

func TestWriteOutput(t *testing.T) {
	t.Parallel()

	out := &output{UserID: "u1", Email: "a@aroosi.app", Role: model.RoleAdmin, Plan: model.PlanFree}

	var plain bytes.Buffer
	require.NoError(t, writeOutput(&plain, out, "plain"))
	assert.Equal(t, "u1\n", plain.String())

	var js bytes.Buffer
	require.NoError(t, writeOutput(&js, out, "JSON"))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "admin", decoded["role"])

	assert.Error(t, writeOutput(&plain, out, "yaml"))
}
