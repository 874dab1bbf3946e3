// Package accountstest provides an in-memory account store with the same
// uniqueness rules as the users table, for transport and service tests.
package accountstest

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/dbx"
	"github.com/dmitrijs2005/conduit/internal/server/models"
	"github.com/dmitrijs2005/conduit/internal/server/repositories/accounts"
)

// Repository keeps accounts in maps keyed by ID, email and username.
type Repository struct {
	mu        sync.Mutex
	byID      map[string]*models.Account
	emails    map[string]string
	usernames map[string]string
}

func NewRepository() *Repository {
	return &Repository{
		byID:      map[string]*models.Account{},
		emails:    map[string]string{},
		usernames: map[string]string{},
	}
}

// Len returns the number of stored accounts.
func (m *Repository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *Repository) lookup(idx map[string]string, key string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := idx[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *Repository) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	return m.lookup(m.emails, email)
}

func (m *Repository) FindByUsername(_ context.Context, username string) (*models.Account, error) {
	return m.lookup(m.usernames, username)
}

func (m *Repository) FindByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Repository) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.emails[a.Email]; taken {
		return nil, &accounts.UniqueViolationError{Field: "email"}
	}
	if _, taken := m.usernames[a.Username]; taken {
		return nil, &accounts.UniqueViolationError{Field: "username"}
	}
	cp := *a
	cp.ID = uuid.NewString()
	m.byID[cp.ID] = &cp
	m.emails[cp.Email] = cp.ID
	m.usernames[cp.Username] = cp.ID
	out := cp
	return &out, nil
}

func (m *Repository) Update(_ context.Context, id string, p models.AccountPatch) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if p.Email != nil {
		if owner, taken := m.emails[*p.Email]; taken && owner != id {
			return nil, &accounts.UniqueViolationError{Field: "email"}
		}
	}
	if p.Username != nil {
		if owner, taken := m.usernames[*p.Username]; taken && owner != id {
			return nil, &accounts.UniqueViolationError{Field: "username"}
		}
	}

	delete(m.emails, a.Email)
	delete(m.usernames, a.Username)
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Username != nil {
		a.Username = *p.Username
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.Bio != nil {
		a.Bio = p.Bio
	}
	if p.Image != nil {
		a.Image = p.Image
	}
	m.emails[a.Email] = id
	m.usernames[a.Username] = id

	cp := *a
	return &cp, nil
}

// Manager hands out the same Repository for every handle and runs no
// migrations.
type Manager struct {
	Repo accounts.Repository
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *Manager) Accounts(dbx.DBTX) accounts.Repository      { return m.Repo }

// NewTxDB opens an empty in-memory SQLite database. It only provides
// transactions; account data lives in the Repository.
func NewTxDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
