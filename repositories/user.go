//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jonboulle/clockwork"
)

type IUserRepository interface {
	CreateUser(user domain.NewUser) (domain.User, error)
	GetUserByID(id domain.UserID) (domain.User, error)
	GetUserByEmail(email string) (domain.User, error)
	SearchUsers(query string, exclude domain.UserID, limit int) ([]domain.User, error)
}

// UserRepository stores users under "user:id:{id}" with two unique lookup keys,
// "user:email:{email}" and "user:name:{username}", both lowercased.
type UserRepository struct {
	db    *badger.DB
	seq   *badger.Sequence
	clock clockwork.Clock
}

func NewUserRepository(db *badger.DB, clock clockwork.Clock) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), sequenceBandwidth)
	if err != nil {
		return nil, err
	}
	return &UserRepository{db: db, seq: seq, clock: clock}, nil
}

// Close releases the leased id range.
func (u *UserRepository) Close() error {
	return u.seq.Release()
}

type diskUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func userKey(id domain.UserID) []byte {
	return []byte(fmt.Sprintf("user:id:%020d", id))
}

func emailKey(email string) []byte {
	return []byte("user:email:" + strings.ToLower(strings.TrimSpace(email)))
}

func usernameKey(username string) []byte {
	return []byte("user:name:" + strings.ToLower(strings.TrimSpace(username)))
}

// CreateUser persists a new user. Email and username must both be unused.
func (u *UserRepository) CreateUser(user domain.NewUser) (domain.User, error) {
	rawID, err := nextID(u.seq)
	if err != nil {
		return domain.User{}, err
	}
	created := domain.User{
		ID:           domain.UserID(rawID),
		Username:     strings.TrimSpace(user.Username),
		Email:        strings.TrimSpace(user.Email),
		FullName:     strings.TrimSpace(user.FullName),
		PasswordHash: user.PasswordHash,
		CreatedAt:    u.clock.Now().UTC(),
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		for _, key := range [][]byte{emailKey(created.Email), usernameKey(created.Username)} {
			taken, err := exists(txn, key)
			if err != nil {
				return err
			}
			if taken {
				return errors.ErrUserAlreadyExists
			}
		}
		idValue := []byte(strconv.FormatInt(rawID, 10))
		if err := txn.Set(emailKey(created.Email), idValue); err != nil {
			return err
		}
		if err := txn.Set(usernameKey(created.Username), idValue); err != nil {
			return err
		}
		return setJSON(txn, userKey(created.ID), fromUser(created))
	})
	if err != nil {
		return domain.User{}, translate(err, errors.ErrUserNotFound)
	}
	return created, nil
}

func (u *UserRepository) GetUserByID(id domain.UserID) (domain.User, error) {
	var du diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &du)
	})
	if err != nil {
		return domain.User{}, translate(err, errors.ErrUserNotFound)
	}
	return toUser(du), nil
}

func (u *UserRepository) GetUserByEmail(email string) (domain.User, error) {
	var du diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(domain.UserID(id)), &du)
	})
	if err != nil {
		return domain.User{}, translate(err, errors.ErrUserNotFound)
	}
	return toUser(du), nil
}

// SearchUsers returns at most limit users whose username, full name or email
// contains query (case-insensitive), skipping exclude.
func (u *UserRepository) SearchUsers(query string, exclude domain.UserID, limit int) ([]domain.User, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	users := make([]domain.User, 0)
	if needle == "" || limit <= 0 {
		return users, nil
	}

	err := u.db.View(func(txn *badger.Txn) error {
		prefix := []byte("user:id:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(users) < limit; it.Next() {
			var du diskUser
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &du)
			}); err != nil {
				return err
			}
			if domain.UserID(du.ID) == exclude || !matchesUser(du, needle) {
				continue
			}
			users = append(users, toUser(du))
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, errors.ErrUserNotFound)
	}
	return users, nil
}

func matchesUser(du diskUser, needle string) bool {
	return strings.Contains(strings.ToLower(du.Username), needle) ||
		strings.Contains(strings.ToLower(du.FullName), needle) ||
		strings.Contains(strings.ToLower(du.Email), needle)
}

func fromUser(user domain.User) diskUser {
	return diskUser{
		ID:           int64(user.ID),
		Username:     user.Username,
		Email:        user.Email,
		FullName:     user.FullName,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	}
}

func toUser(du diskUser) domain.User {
	return domain.User{
		ID:           domain.UserID(du.ID),
		Username:     du.Username,
		Email:        du.Email,
		FullName:     du.FullName,
		PasswordHash: du.PasswordHash,
		CreatedAt:    du.CreatedAt.UTC(),
	}
}
