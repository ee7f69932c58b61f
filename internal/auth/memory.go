package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryProvider is an in-memory Provider for unit tests and local
// development. Accounts live only for the process lifetime.
type MemoryProvider struct {
	mu      sync.Mutex
	byEmail map[string]*memoryAccount
	err     error
}

type memoryAccount struct {
	uid         string
	email       string
	password    string
	displayName string
}

// NewMemoryProvider instantiates an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{byEmail: make(map[string]*memoryAccount)}
}

// WithError forces every subsequent call to fail with err. Pass nil to clear.
func (p *MemoryProvider) WithError(err error) *MemoryProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	return p
}

// Accounts reports how many accounts have been registered.
func (p *MemoryProvider) Accounts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byEmail)
}

func (p *MemoryProvider) SignIn(_ context.Context, email, password string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return Session{}, p.err
	}

	acct, ok := p.byEmail[normalizeEmail(email)]
	if !ok || acct.password != password {
		return Session{}, ErrInvalidCredentials
	}
	return acct.session(), nil
}

func (p *MemoryProvider) SignUp(_ context.Context, email, password string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return Session{}, p.err
	}

	key := normalizeEmail(email)
	if _, exists := p.byEmail[key]; exists {
		return Session{}, ErrEmailExists
	}
	if len(password) < 6 {
		return Session{}, ErrWeakPassword
	}

	acct := &memoryAccount{
		uid:      uuid.New().String(),
		email:    key,
		password: password,
	}
	p.byEmail[key] = acct
	return acct.session(), nil
}

func (p *MemoryProvider) UpdateDisplayName(_ context.Context, idToken, displayName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}

	for _, acct := range p.byEmail {
		if acct.idToken() == idToken {
			acct.displayName = displayName
			return nil
		}
	}
	return ErrInvalidCredentials
}

func (a *memoryAccount) session() Session {
	return Session{
		UID:         a.uid,
		Email:       a.email,
		DisplayName: a.displayName,
		IDToken:     a.idToken(),
	}
}

func (a *memoryAccount) idToken() string {
	return "memory-token-" + a.uid
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
