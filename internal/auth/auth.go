// Package auth registers chat users on /start.
package auth

import (
	"context"
	"sync"

	"github.com/asymptotic-code/telegram-bot/internal/storage"
)

type Repository interface {
	CreateUser(ctx context.Context, user storage.User) error
	GetUser(ctx context.Context, userID int64) (*storage.User, error)
}

// Service caches users it has already seen so repeated /start calls skip the store.
type Service struct {
	repo  Repository
	mu    sync.RWMutex
	known map[int64]storage.User
}

func New(repo Repository) *Service {
	return &Service{repo: repo, known: make(map[int64]storage.User)}
}

// Register creates the user on first contact. Existing users are left untouched
// and created reports false.
func (s *Service) Register(ctx context.Context, user storage.User) (created bool, err error) {
	if _, ok := s.lookup(user.ID); ok {
		return false, nil
	}
	existing, err := s.repo.GetUser(ctx, user.ID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		s.remember(*existing)
		return false, nil
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return false, err
	}
	s.remember(user)
	return true, nil
}

func (s *Service) lookup(id int64) (storage.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.known[id]
	return u, ok
}

func (s *Service) remember(u storage.User) {
	s.mu.Lock()
	s.known[u.ID] = u
	s.mu.Unlock()
}
