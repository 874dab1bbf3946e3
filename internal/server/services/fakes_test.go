package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/dbx"
	"github.com/dmitrijs2005/conduit/internal/logging"
	"github.com/dmitrijs2005/conduit/internal/server/auth"
	"github.com/dmitrijs2005/conduit/internal/server/models"
	"github.com/dmitrijs2005/conduit/internal/server/repositories/accounts"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newPasswords() *auth.PasswordCredential {
	return auth.NewPasswordCredential(bcrypt.MinCost, 4)
}

func newAccountService(db *sql.DB, repo accounts.Repository) *AccountService {
	return NewAccountService(db, &fakeRepoManager{repo: repo}, newPasswords(), logging.Nop{})
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func staticSign(token string) SignFunc {
	return func(*models.Account) (string, error) { return token, nil }
}

func failingSign(err error) SignFunc {
	return func(*models.Account) (string, error) { return "", err }
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// --- fake repo manager ---

type fakeRepoManager struct {
	repo accounts.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository      { return m.repo }

// --- scripted repository ---

type fakeAccountsRepo struct {
	byEmail       *models.Account
	byEmailErr    error
	byUsername    *models.Account
	byUsernameErr error
	byID          *models.Account
	byIDErr       error

	createErr error
	created   *models.Account

	updateBase *models.Account
	updateErr  error
	patch      *models.AccountPatch
}

func found(a *models.Account, err error) (*models.Account, error) {
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAccountsRepo) FindByEmail(context.Context, string) (*models.Account, error) {
	return found(f.byEmail, f.byEmailErr)
}

func (f *fakeAccountsRepo) FindByUsername(context.Context, string) (*models.Account, error) {
	return found(f.byUsername, f.byUsernameErr)
}

func (f *fakeAccountsRepo) FindByID(context.Context, string) (*models.Account, error) {
	return found(f.byID, f.byIDErr)
}

func (f *fakeAccountsRepo) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	cp := *a
	cp.ID = "acc-1"
	f.created = &cp
	return &cp, nil
}

func (f *fakeAccountsRepo) Update(_ context.Context, id string, p models.AccountPatch) (*models.Account, error) {
	f.patch = &p
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	out := *f.updateBase
	applyPatch(&out, p)
	return &out, nil
}

func applyPatch(a *models.Account, p models.AccountPatch) {
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
}
