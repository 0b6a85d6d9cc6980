// Package memory is an in-process UserStore for tests and embedded use.
// All operations run under one mutex, which gives Create the same
// atomicity a relational unique constraint provides.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vendo-labs/vauth"
)

// Store implements vauth.UserStore backed by maps.
type Store struct {
	mu       sync.Mutex
	users    map[string]*vauth.User // by id
	byEmail  map[string]string      // lowercased email -> id
	accounts []*vauth.Account
	prefs    map[string]*vauth.Preferences // by user id
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[string]*vauth.User),
		byEmail: make(map[string]string),
		prefs:   make(map[string]*vauth.Preferences),
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) GetByEmail(_ context.Context, email string) (*vauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[normalize(email)]
	if !ok {
		return nil, vauth.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

func (s *Store) GetByID(_ context.Context, id string) (*vauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, vauth.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *Store) Create(_ context.Context, input vauth.CreateUserInput) (*vauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalize(input.Email)
	if _, exists := s.byEmail[email]; exists {
		return nil, vauth.ErrDuplicateEmail
	}
	for _, a := range s.accounts {
		if a.Provider == input.Provider && a.ProviderAccountID == input.ProviderAccountID {
			return nil, vauth.ErrDuplicateEmail
		}
	}

	now := time.Now()
	role := input.Role
	if role == "" {
		role = vauth.RoleUser
	}
	u := &vauth.User{
		ID:              uuid.NewString(),
		Email:           email,
		PasswordHash:    input.PasswordHash,
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		PictureURL:      input.PictureURL,
		Role:            role,
		IsActive:        true,
		IsEmailVerified: input.IsEmailVerified,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	s.accounts = append(s.accounts, &vauth.Account{
		ID:                uuid.NewString(),
		UserID:            u.ID,
		Provider:          input.Provider,
		ProviderAccountID: input.ProviderAccountID,
		CreatedAt:         now,
	})
	s.prefs[u.ID] = &vauth.Preferences{UserID: u.ID}

	out := *u
	return &out, nil
}

func (s *Store) Update(_ context.Context, id string, patch vauth.UserPatch) (*vauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, vauth.ErrUserNotFound
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.PictureURL != nil {
		u.PictureURL = *patch.PictureURL
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	if patch.IsEmailVerified != nil {
		u.IsEmailVerified = *patch.IsEmailVerified
	}
	u.UpdatedAt = time.Now()

	out := *u
	return &out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return vauth.ErrUserNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.users, id)
	delete(s.prefs, id)

	kept := s.accounts[:0]
	for _, a := range s.accounts {
		if a.UserID != id {
			kept = append(kept, a)
		}
	}
	s.accounts = kept
	return nil
}

func (s *Store) GetAccountByProvider(_ context.Context, provider vauth.Provider, providerAccountID string) (*vauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Provider == provider && a.ProviderAccountID == providerAccountID {
			out := *a
			return &out, nil
		}
	}
	return nil, vauth.ErrUserNotFound
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (*vauth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[normalize(email)]
	if !ok {
		return nil, vauth.ErrUserNotFound
	}
	for _, a := range s.accounts {
		if a.UserID == id {
			out := *a
			return &out, nil
		}
	}
	return nil, vauth.ErrUserNotFound
}

func (s *Store) GetPreferences(_ context.Context, userID string) (*vauth.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prefs[userID]
	if !ok {
		return nil, vauth.ErrUserNotFound
	}
	out := *p
	return &out, nil
}

func (s *Store) UpdatePreferences(_ context.Context, userID string, patch vauth.PreferencesPatch) (*vauth.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prefs[userID]
	if !ok {
		return nil, vauth.ErrUserNotFound
	}
	if patch.TwoFactorEnabled != nil {
		p.TwoFactorEnabled = *patch.TwoFactorEnabled
	}
	if patch.TwoFactorSecret != nil {
		p.TwoFactorSecret = *patch.TwoFactorSecret
	}
	out := *p
	return &out, nil
}

var _ vauth.UserStore = (*Store)(nil)
