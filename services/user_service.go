package services

import (
	"chat-relay/domain"
	"chat-relay/repositories"

	"github.com/samber/lo"
)

// searchLimit caps the number of users returned by a search.
const searchLimit = 10

type UserService struct {
	users repositories.IUserRepository
}

func NewUserService(users repositories.IUserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) Me(userID domain.UserID) (domain.Profile, error) {
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return domain.Profile{}, err
	}
	return user.Profile(), nil
}

// Search finds other users by username, full name or email. Emails are not disclosed.
func (s *UserService) Search(caller domain.UserID, query string) ([]domain.Profile, error) {
	users, err := s.users.SearchUsers(query, caller, searchLimit)
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u domain.User, _ int) domain.Profile {
		p := u.Profile()
		p.Email = ""
		return p
	}), nil
}
