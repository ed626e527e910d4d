package auth

import (
	"context"
	"errors"
	"sync"

	"ceramica-booking/internal/booking"
)

var ErrNoHandler = errors.New("no sign-in handler registered")

// SignInHandler receives a user that just signed in and returns the session
// token handed back to the browser.
type SignInHandler func(ctx context.Context, user booking.User) (string, error)

// HandlerSlot holds at most one SignInHandler. Registering replaces the
// current handler; the returned func removes it again if still current.
type HandlerSlot struct {
	mu      sync.RWMutex
	handler SignInHandler
	gen     uint64
}

func (s *HandlerSlot) Register(h SignInHandler) (deregister func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	mine := s.gen
	s.handler = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen == mine {
			s.handler = nil
		}
	}
}

// Dispatch hands user to the registered handler.
func (s *HandlerSlot) Dispatch(ctx context.Context, user booking.User) (string, error) {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()
	if h == nil {
		return "", ErrNoHandler
	}
	return h(ctx, user)
}
