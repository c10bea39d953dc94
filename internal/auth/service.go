package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// unknownUserHash keeps the cost of a failed lookup equal to a wrong password.
var unknownUserHash, _ = bcrypt.GenerateFromPassword([]byte("unknown-user"), bcrypt.DefaultCost)

// Service wraps authentication business rules.
type Service struct {
	users map[string]StaffUser
}

// NewService constructs a new Service.
func NewService(users []StaffUser) *Service {
	index := make(map[string]StaffUser, len(users))
	for _, u := range users {
		index[strings.ToLower(u.Username)] = u
	}
	return &Service{users: index}
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(_ context.Context, username, password string) (*StaffUser, error) {
	user, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(unknownUserHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Lookup returns the staff user stored in a session.
func (s *Service) Lookup(username string) (*StaffUser, bool) {
	user, ok := s.users[strings.ToLower(username)]
	if !ok {
		return nil, false
	}
	return &user, true
}

// Count reports how many staff users are configured.
func (s *Service) Count() int {
	return len(s.users)
}
