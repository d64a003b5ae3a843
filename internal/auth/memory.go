package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory keeps accounts in process memory. It backs offline use and tests.
type Memory struct {
	sessionState

	usersMu sync.Mutex
	users   map[string]memoryUser
}

type memoryUser struct {
	id       string
	password string
}

func NewMemory() *Memory {
	return &Memory{users: map[string]memoryUser{}}
}

func (m *Memory) SignUp(_ context.Context, email, password string) (bool, string) {
	if msg := checkSignUp(email, password); msg != "" {
		return false, msg
	}
	key := strings.ToLower(email)
	m.usersMu.Lock()
	defer m.usersMu.Unlock()
	if _, ok := m.users[key]; ok {
		return false, "This email is already registered. Use another email or sign in."
	}
	m.users[key] = memoryUser{id: uuid.NewString(), password: password}
	return true, msgSignedUp
}

func (m *Memory) SignIn(_ context.Context, email, password string) (bool, string) {
	m.usersMu.Lock()
	u, ok := m.users[strings.ToLower(email)]
	m.usersMu.Unlock()
	if !ok || u.password != password {
		return false, "Sign-in error: invalid login credentials"
	}
	m.set(User{ID: u.id, Email: email}, "")
	return true, msgSignedIn
}

func (m *Memory) SignOut(context.Context) (bool, string) {
	m.clear()
	return true, msgSignedOut
}
