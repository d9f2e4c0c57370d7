package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/shared"
)

type memoryUserRepo struct {
	users map[string]*User
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, ok := r.users[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func newRepoWithUser(t *testing.T, email, password string, active bool) *memoryUserRepo {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &memoryUserRepo{users: map[string]*User{
		strings.ToLower(email): {
			ID:           uuid.New(),
			Email:        email,
			Name:         "Test User",
			PasswordHash: hash,
			Role:         shared.RoleUser,
			IsActive:     active,
		},
	}}
}

func TestAuthenticateSuccess(t *testing.T) {
	repo := newRepoWithUser(t, "clerk@optica.test", "s3cret", true)
	svc := NewService(repo)

	user, err := svc.Authenticate(context.Background(), LoginInput{Email: "clerk@optica.test", Password: "s3cret"})
	require.NoError(t, err)
	require.Equal(t, "clerk@optica.test", user.Email)
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	repo := newRepoWithUser(t, "clerk@optica.test", "s3cret", true)
	svc := NewService(repo)

	_, err := svc.Authenticate(context.Background(), LoginInput{Email: "nobody@optica.test", Password: "s3cret"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), LoginInput{Email: "clerk@optica.test", Password: "wrong"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	disabled := newRepoWithUser(t, "gone@optica.test", "s3cret", false)
	_, err = NewService(disabled).Authenticate(context.Background(), LoginInput{Email: "gone@optica.test", Password: "s3cret"})
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
