//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
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

type IRoomRepository interface {
	CreateRoom(room domain.NewRoom, members ...domain.UserID) (domain.Room, error)
	GetRoom(id domain.RoomID) (domain.Room, error)
	RoomExists(id domain.RoomID) (bool, error)
	ListPublicRooms() ([]domain.Room, error)
	AddMember(roomID domain.RoomID, userID domain.UserID) error
	RemoveMember(roomID domain.RoomID, userID domain.UserID) error
	IsMember(roomID domain.RoomID, userID domain.UserID) (bool, error)
	RoomsOf(userID domain.UserID) ([]domain.RoomID, error)
	Members(roomID domain.RoomID) ([]domain.UserID, error)
	FindConversation(a, b domain.UserID) (domain.Room, bool, error)
	CreateConversation(a, b domain.UserID, name string) (domain.Room, error)
}

// RoomRepository persists rooms and who may see them.
// Membership is indexed both ways: "member:room:{room}:{user}" and "member:user:{user}:{room}".
// A private conversation between two users is found through "conv:{low}:{high}".
type RoomRepository struct {
	db    *badger.DB
	seq   *badger.Sequence
	clock clockwork.Clock
}

func NewRoomRepository(db *badger.DB, clock clockwork.Clock) (*RoomRepository, error) {
	seq, err := db.GetSequence([]byte("seq:room"), sequenceBandwidth)
	if err != nil {
		return nil, err
	}
	return &RoomRepository{db: db, seq: seq, clock: clock}, nil
}

func (r *RoomRepository) Close() error {
	return r.seq.Release()
}

type diskRoom struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsPrivate   bool      `json:"is_private"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func roomKey(id domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%020d", id))
}

func roomMemberKey(roomID domain.RoomID, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("member:room:%020d:%020d", roomID, userID))
}

func userMemberKey(userID domain.UserID, roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("member:user:%020d:%020d", userID, roomID))
}

func conversationKey(a, b domain.UserID) []byte {
	if a > b {
		a, b = b, a
	}
	return []byte(fmt.Sprintf("conv:%020d:%020d", a, b))
}

// CreateRoom persists the room and makes every given user a member of it.
func (r *RoomRepository) CreateRoom(room domain.NewRoom, members ...domain.UserID) (domain.Room, error) {
	created, err := r.newRoom(room)
	if err != nil {
		return domain.Room{}, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return r.insert(txn, created, members)
	})
	if err != nil {
		return domain.Room{}, translate(err, errors.ErrRoomNotFound)
	}
	return created, nil
}

func (r *RoomRepository) GetRoom(id domain.RoomID) (domain.Room, error) {
	var dr diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, roomKey(id), &dr)
	})
	if err != nil {
		return domain.Room{}, translate(err, errors.ErrRoomNotFound)
	}
	return toRoom(dr), nil
}

func (r *RoomRepository) RoomExists(id domain.RoomID) (bool, error) {
	var found bool
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = exists(txn, roomKey(id))
		return err
	})
	if err != nil {
		return false, translate(err, errors.ErrRoomNotFound)
	}
	return found, nil
}

// ListPublicRooms returns every non-private room, in id order.
func (r *RoomRepository) ListPublicRooms() ([]domain.Room, error) {
	rooms := make([]domain.Room, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dr diskRoom
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dr)
			}); err != nil {
				return err
			}
			if !dr.IsPrivate {
				rooms = append(rooms, toRoom(dr))
			}
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, errors.ErrRoomNotFound)
	}
	return rooms, nil
}

func (r *RoomRepository) AddMember(roomID domain.RoomID, userID domain.UserID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		found, err := exists(txn, roomKey(roomID))
		if err != nil {
			return err
		}
		if !found {
			return errors.ErrRoomNotFound
		}
		return addMember(txn, roomID, userID)
	})
	return translate(err, errors.ErrRoomNotFound)
}

// RemoveMember is a no-op when the user is not a member.
func (r *RoomRepository) RemoveMember(roomID domain.RoomID, userID domain.UserID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(roomMemberKey(roomID, userID)); err != nil {
			return err
		}
		return txn.Delete(userMemberKey(userID, roomID))
	})
	return translate(err, errors.ErrRoomNotFound)
}

func (r *RoomRepository) IsMember(roomID domain.RoomID, userID domain.UserID) (bool, error) {
	var found bool
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = exists(txn, roomMemberKey(roomID, userID))
		return err
	})
	if err != nil {
		return false, translate(err, errors.ErrRoomNotFound)
	}
	return found, nil
}

// RoomsOf lists the rooms a user is a persistent member of, in id order.
func (r *RoomRepository) RoomsOf(userID domain.UserID) ([]domain.RoomID, error) {
	rooms := make([]domain.RoomID, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("member:user:%020d:", userID))
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return err
			}
			rooms = append(rooms, domain.RoomID(id))
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, errors.ErrRoomNotFound)
	}
	return rooms, nil
}

// Members lists the persistent members of a room, in id order.
func (r *RoomRepository) Members(roomID domain.RoomID) ([]domain.UserID, error) {
	members := make([]domain.UserID, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("member:room:%020d:", roomID))
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := strconv.ParseInt(strings.TrimPrefix(string(it.Item().Key()), string(prefix)), 10, 64)
			if err != nil {
				return err
			}
			members = append(members, domain.UserID(id))
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, errors.ErrRoomNotFound)
	}
	return members, nil
}

// FindConversation returns the private room shared by two users, if any.
func (r *RoomRepository) FindConversation(a, b domain.UserID) (domain.Room, bool, error) {
	var dr diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		id, err := conversationID(txn, a, b)
		if err != nil {
			return err
		}
		return getJSON(txn, roomKey(id), &dr)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, false, nil
	}
	if err != nil {
		return domain.Room{}, false, translate(err, errors.ErrRoomNotFound)
	}
	return toRoom(dr), true, nil
}

// CreateConversation creates the private room between a and b, or returns the existing one.
func (r *RoomRepository) CreateConversation(a, b domain.UserID, name string) (domain.Room, error) {
	created, err := r.newRoom(domain.NewRoom{Name: name, IsPrivate: true, OwnerID: a})
	if err != nil {
		return domain.Room{}, err
	}

	var result domain.Room
	err = r.db.Update(func(txn *badger.Txn) error {
		id, err := conversationID(txn, a, b)
		switch {
		case err == nil:
			var dr diskRoom
			if err := getJSON(txn, roomKey(id), &dr); err != nil {
				return err
			}
			result = toRoom(dr)
			return nil
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := r.insert(txn, created, []domain.UserID{a, b}); err != nil {
			return err
		}
		result = created
		return txn.Set(conversationKey(a, b), []byte(strconv.FormatInt(int64(created.ID), 10)))
	})
	if err != nil {
		return domain.Room{}, translate(err, errors.ErrRoomNotFound)
	}
	return result, nil
}

func (r *RoomRepository) newRoom(room domain.NewRoom) (domain.Room, error) {
	rawID, err := nextID(r.seq)
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{
		ID:          domain.RoomID(rawID),
		Name:        strings.TrimSpace(room.Name),
		Description: strings.TrimSpace(room.Description),
		IsPrivate:   room.IsPrivate,
		OwnerID:     room.OwnerID,
		CreatedAt:   r.clock.Now().UTC(),
	}, nil
}

func (r *RoomRepository) insert(txn *badger.Txn, room domain.Room, members []domain.UserID) error {
	if err := setJSON(txn, roomKey(room.ID), fromRoom(room)); err != nil {
		return err
	}
	for _, userID := range members {
		if err := addMember(txn, room.ID, userID); err != nil {
			return err
		}
	}
	return nil
}

func addMember(txn *badger.Txn, roomID domain.RoomID, userID domain.UserID) error {
	if err := txn.Set(roomMemberKey(roomID, userID), nil); err != nil {
		return err
	}
	return txn.Set(userMemberKey(userID, roomID), nil)
}

func conversationID(txn *badger.Txn, a, b domain.UserID) (domain.RoomID, error) {
	item, err := txn.Get(conversationKey(a, b))
	if err != nil {
		return 0, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	return domain.RoomID(id), nil
}

func fromRoom(room domain.Room) diskRoom {
	return diskRoom{
		ID:          int64(room.ID),
		Name:        room.Name,
		Description: room.Description,
		IsPrivate:   room.IsPrivate,
		OwnerID:     int64(room.OwnerID),
		CreatedAt:   room.CreatedAt,
	}
}

func toRoom(dr diskRoom) domain.Room {
	return domain.Room{
		ID:          domain.RoomID(dr.ID),
		Name:        dr.Name,
		Description: dr.Description,
		IsPrivate:   dr.IsPrivate,
		OwnerID:     domain.UserID(dr.OwnerID),
		CreatedAt:   dr.CreatedAt.UTC(),
	}
}
