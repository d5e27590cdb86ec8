package domain

import "time"

type UserID int64

type User struct {
	ID           UserID
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	CreatedAt    time.Time
}

type NewUser struct {
	Username     string
	Email        string
	FullName     string
	PasswordHash string
}

// Profile is the public view of a user, without credentials.
type Profile struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName}
}
