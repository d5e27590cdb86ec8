package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func newUserRepository(t *testing.T) *UserRepository {
	repo, err := NewUserRepository(openBadger(t), clockwork.NewFakeClock())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestUserRepository_Create_And_Get(t *testing.T) {
	req := require.New(t)
	repo := newUserRepository(t)

	alice, err := repo.CreateUser(domain.NewUser{Username: "alice", Email: "Alice@Example.com", FullName: "Alice A", PasswordHash: "hash"})
	req.NoError(err)
	req.Equal(domain.UserID(1), alice.ID)

	bob, err := repo.CreateUser(domain.NewUser{Username: "bob", Email: "bob@example.com", FullName: "Bob B", PasswordHash: "hash"})
	req.NoError(err)
	req.Equal(domain.UserID(2), bob.ID)

	byID, err := repo.GetUserByID(alice.ID)
	req.NoError(err)
	req.Equal(alice, byID)

	// Email lookup is case-insensitive
	byEmail, err := repo.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(alice.ID, byEmail.ID)

	_, err = repo.GetUserByID(42)
	req.ErrorIs(err, errors.ErrUserNotFound)
	_, err = repo.GetUserByEmail("nobody@example.com")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestUserRepository_Rejects_Duplicates(t *testing.T) {
	req := require.New(t)
	repo := newUserRepository(t)

	_, err := repo.CreateUser(domain.NewUser{Username: "alice", Email: "alice@example.com", PasswordHash: "h"})
	req.NoError(err)

	_, err = repo.CreateUser(domain.NewUser{Username: "other", Email: "ALICE@example.com", PasswordHash: "h"})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	_, err = repo.CreateUser(domain.NewUser{Username: "Alice", Email: "new@example.com", PasswordHash: "h"})
	req.ErrorIs(err, errors.ErrConflict)
}

func TestUserRepository_Search(t *testing.T) {
	req := require.New(t)
	repo := newUserRepository(t)

	for _, name := range []string{"alice", "alfred", "bob"} {
		_, err := repo.CreateUser(domain.NewUser{Username: name, Email: name + "@example.com", PasswordHash: "h"})
		req.NoError(err)
	}

	users, err := repo.SearchUsers("AL", 1, 10)
	req.NoError(err)
	req.Len(users, 1)
	req.Equal("alfred", users[0].Username)

	users, err = repo.SearchUsers("example", 0, 2)
	req.NoError(err)
	req.Len(users, 2)

	users, err = repo.SearchUsers("  ", 0, 10)
	req.NoError(err)
	req.Empty(users)
}
