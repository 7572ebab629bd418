// Package session holds the authenticated state of a client: who is logged in and
// the bearer tokens used against the OBE API.
package session

import (
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Profile identifies the logged in user.
type Profile struct {
	ID       int      `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// Session is safe for concurrent use. The zero value is an inactive session.
type Session struct {
	mu      sync.RWMutex
	profile *Profile
	token   *oauth2.Token
	onEnd   []func()
}

func New() *Session {
	return new(Session)
}

// Begin starts the session after a successful login.
func (s *Session) Begin(p Profile, tok *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = &p
	s.token = tok
}

// End tears the session down (logout, or a rejected token that could not be refreshed).
func (s *Session) End() {
	s.mu.Lock()
	wasActive := s.token != nil
	s.profile = nil
	s.token = nil
	hooks := append([]func(){}, s.onEnd...)
	s.mu.Unlock()

	if wasActive {
		for _, fn := range hooks {
			fn()
		}
	}
}

// OnEnd registers fn to run whenever an active session ends.
func (s *Session) OnEnd(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEnd = append(s.onEnd, fn)
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != nil && s.token.AccessToken != ""
}

func (s *Session) Profile() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return Profile{}, false
	}
	return *s.profile, true
}

// Token returns a copy of the current token, or nil.
func (s *Session) Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil
	}
	tok := *s.token
	return &tok
}

// SetAccessToken replaces the access token after a refresh, keeping the refresh token.
func (s *Session) SetAccessToken(access string, expiry time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return false
	}
	tok := *s.token
	tok.AccessToken = access
	tok.Expiry = expiry
	s.token = &tok
	return true
}

// HasAnyRole reports whether the logged in user has one of roles.
func (s *Session) HasAnyRole(roles ...string) bool {
	p, ok := s.Profile()
	if !ok {
		return false
	}
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
