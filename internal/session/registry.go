package session

import (
	"context"
	"sync"

	"github.com/tbourn/tributaria/internal/auth"
	"github.com/tbourn/tributaria/internal/reply"
)

// Registry keeps one Session per signed-in user.
type Registry struct {
	chats   Chats
	msgs    Messages
	replier reply.Replier
	opts    Options

	mu       sync.Mutex
	sessions map[string]*Session
	// retired holds dropped sessions until their in-flight turns finish.
	retired map[*Session]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry(chats Chats, msgs Messages, r reply.Replier, opts Options) *Registry {
	return &Registry{
		chats:    chats,
		msgs:     msgs,
		replier:  r,
		opts:     opts,
		sessions: make(map[string]*Session),
		retired:  make(map[*Session]struct{}),
	}
}

// Get returns the user's session, creating it on first use.
func (r *Registry) Get(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		return s
	}
	s := New(userID, r.chats, r.msgs, r.replier, r.opts)
	r.sessions[userID] = s
	return s
}

// Lookup returns the user's session if one exists.
func (r *Registry) Lookup(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Drop closes and forgets the user's session.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
		r.retired[s] = struct{}{}
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
	go func() {
		s.Wait()
		s.cancel()
		r.mu.Lock()
		delete(r.retired, s)
		r.mu.Unlock()
	}()
}

// HandleSessionEvent matches auth.Listener: signing out drops the session.
func (r *Registry) HandleSessionEvent(ev auth.Event, userID string) {
	if ev == auth.SignedOut {
		r.Drop(userID)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown closes every session and waits for their in-flight turns. When
// ctx expires first, outstanding work is cancelled and ctx.Err is returned.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions)+len(r.retired))
	for s := range r.retired {
		all = append(all, s)
	}
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	done := make(chan struct{})
	go func() {
		for _, s := range all {
			s.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
		for _, s := range all {
			s.cancel()
		}
		return nil
	case <-ctx.Done():
		for _, s := range all {
			s.Abort()
		}
		<-done
		return ctx.Err()
	}
}
