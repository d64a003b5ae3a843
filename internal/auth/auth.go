// Package auth gates the UI behind an email/password session held by an
// external identity backend.
package auth

import (
	"context"
	"regexp"
	"sync"
)

const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Session struct {
	Authenticated bool
	User          User
}

// Backend reports every outcome as ok plus a message suitable for display.
type Backend interface {
	SignUp(ctx context.Context, email, password string) (bool, string)
	SignIn(ctx context.Context, email, password string) (bool, string)
	SignOut(ctx context.Context) (bool, string)
	Session() Session
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidPassword(password string) bool {
	return len(password) >= MinPasswordLength
}

// checkSignUp returns the rejection message for invalid credentials, or "".
func checkSignUp(email, password string) string {
	if !ValidEmail(email) {
		return "Invalid email address"
	}
	if !ValidPassword(password) {
		return "Password must be at least 6 characters"
	}
	return ""
}

const (
	msgSignedUp  = "Sign-up successful! Check your email to activate the account."
	msgSignedIn  = "Signed in."
	msgSignedOut = "Signed out."
)

type sessionState struct {
	mu      sync.RWMutex
	session Session
	token   string
}

func (s *sessionState) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *sessionState) set(user User, token string) {
	s.mu.Lock()
	s.session = Session{Authenticated: true, User: user}
	s.token = token
	s.mu.Unlock()
}

func (s *sessionState) clear() {
	s.mu.Lock()
	s.session = Session{}
	s.token = ""
	s.mu.Unlock()
}

func (s *sessionState) accessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
