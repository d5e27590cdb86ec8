package domain

import "time"

type RoomID int64

// Valid reports whether the id can name a persisted room.
func (id RoomID) Valid() bool {
	return id > 0
}

type Room struct {
	ID          RoomID
	Name        string
	Description string
	IsPrivate   bool
	OwnerID     UserID
	CreatedAt   time.Time
}

type NewRoom struct {
	Name        string
	Description string
	IsPrivate   bool
	OwnerID     UserID
}
