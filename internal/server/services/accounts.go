// Package services contains server-side business logic. AccountService
// implements registration, login, profile update and token authentication
// for Conduit accounts.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/dbx"
	"github.com/dmitrijs2005/conduit/internal/logging"
	"github.com/dmitrijs2005/conduit/internal/server/auth"
	"github.com/dmitrijs2005/conduit/internal/server/models"
	"github.com/dmitrijs2005/conduit/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/conduit/internal/server/repositories/repomanager"
)

// SignFunc issues a session token for an account. Transports pass the
// signer they copied out of the shared server state.
type SignFunc func(*models.Account) (string, error)

// VerifyFunc checks a session token and returns the account ID it names.
type VerifyFunc func(token string) (string, error)

// AccountService is cheap to build; transports construct one per request
// around the pool handle they acquired.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	passwords   *auth.PasswordCredential
	logger      logging.Logger
}

// NewAccountService wires an AccountService to db through m.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, p *auth.PasswordCredential, l logging.Logger) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		passwords:   p,
		logger:      l.With("module", "account_service"),
	}
}

// Register creates an account and returns its view with a fresh token.
//
// The insert and the signing run in one transaction: if sign fails the
// account is rolled back and ErrTokenIssuanceFailed is returned.
func (s *AccountService) Register(ctx context.Context, params models.RegisterParams, sign SignFunc) (*models.AccountView, error) {
	params.Email = normalizeEmail(params.Email)
	params.Username = strings.TrimSpace(params.Username)
	if err := validateStruct(params); err != nil {
		return nil, err
	}

	repo := s.repomanager.Accounts(s.db)
	if err := s.ensureAvailable(ctx, repo, "", &params.Email, &params.Username); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(ctx, params.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRegistrationFailed, err)
	}

	var view *models.AccountView
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Accounts(tx).Create(ctx, &models.Account{
			Email:        params.Email,
			Username:     params.Username,
			PasswordHash: hash,
		})
		if err != nil {
			return storeError(err)
		}

		token, err := sign(created)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrTokenIssuanceFailed, err)
		}

		view = models.NewAccountView(created, token)
		s.logger.Info(ctx, "account registered", "account_id", created.ID)
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}
	return view, nil
}

// Login checks credentials and returns the account view with a fresh token.
// An unknown email and a wrong password both yield ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, params models.LoginParams, sign SignFunc) (*models.AccountView, error) {
	params.Email = normalizeEmail(params.Email)
	if err := validateStruct(params); err != nil {
		return nil, err
	}

	a, err := s.repomanager.Accounts(s.db).FindByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.passwords.Burn(ctx, params.Password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, storeError(err)
	}

	ok, err := s.passwords.Verify(ctx, params.Password, a.PasswordHash)
	if err != nil {
		if errors.Is(err, common.ErrVerification) {
			s.logger.Error(ctx, "stored password hash is unreadable", "account_id", a.ID)
		}
		return nil, err
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	token, err := sign(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTokenIssuanceFailed, err)
	}
	return models.NewAccountView(a, token), nil
}

// UpdateAccount applies the non-nil fields of upd to current and returns
// the updated view with a token re-issued for it.
func (s *AccountService) UpdateAccount(ctx context.Context, upd models.AccountUpdate, current *models.Account, sign SignFunc) (*models.AccountView, error) {
	if current == nil {
		return nil, common.ErrorUnauthorized
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		upd.Email = &email
	}
	if upd.Username != nil {
		username := strings.TrimSpace(*upd.Username)
		upd.Username = &username
	}
	if err := validateStruct(upd); err != nil {
		return nil, err
	}

	patch := models.AccountPatch{Bio: upd.Bio, Image: upd.Image}

	var email, username *string
	if upd.Email != nil && *upd.Email != current.Email {
		email = upd.Email
		patch.Email = upd.Email
	}
	if upd.Username != nil && *upd.Username != current.Username {
		username = upd.Username
		patch.Username = upd.Username
	}
	if err := s.ensureAvailable(ctx, s.repomanager.Accounts(s.db), current.ID, email, username); err != nil {
		return nil, err
	}

	if upd.Password != nil {
		hash, err := s.passwords.Hash(ctx, *upd.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrUpdateFailed, err)
		}
		patch.PasswordHash = &hash
	}

	var view *models.AccountView
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		updated, err := s.repomanager.Accounts(tx).Update(ctx, current.ID, patch)
		if err != nil {
			return storeError(err)
		}

		token, err := sign(updated)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrTokenIssuanceFailed, err)
		}

		view = models.NewAccountView(updated, token)
		return nil
	})
	if err != nil {
		return nil, txError(err)
	}

	s.logger.Info(ctx, "account updated", "account_id", current.ID)
	return view, nil
}

// Current returns the caller's own view with a freshly issued token.
func (s *AccountService) Current(_ context.Context, current *models.Account, sign SignFunc) (*models.AccountView, error) {
	if current == nil {
		return nil, common.ErrorUnauthorized
	}
	token, err := sign(current)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTokenIssuanceFailed, err)
	}
	return models.NewAccountView(current, token), nil
}

// Profile returns the public view of the account called username.
func (s *AccountService) Profile(ctx context.Context, username string) (*models.ProfileView, error) {
	a, err := s.repomanager.Accounts(s.db).FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, storeError(err)
	}
	return models.NewProfileView(a), nil
}

// Authenticate resolves a session token to the account it was issued for.
// Every failure to do so is ErrorUnauthorized, except store failures.
func (s *AccountService) Authenticate(ctx context.Context, token string, verify VerifyFunc) (*models.Account, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", common.ErrorUnauthorized)
	}

	id, err := verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}

	a, err := s.repomanager.Accounts(s.db).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", common.ErrorUnauthorized)
		}
		return nil, storeError(err)
	}
	return a, nil
}

// ensureAvailable fails with a conflict when email or username (if non-nil)
// belongs to an account other than selfID. The unique constraints remain the
// final arbiter for concurrent writers.
func (s *AccountService) ensureAvailable(ctx context.Context, repo accounts.Repository, selfID string, email, username *string) error {
	if email != nil {
		a, err := repo.FindByEmail(ctx, *email)
		if err == nil && a.ID != selfID {
			return common.ErrEmailTaken
		}
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return storeError(err)
		}
	}
	if username != nil {
		a, err := repo.FindByUsername(ctx, *username)
		if err == nil && a.ID != selfID {
			return common.ErrUsernameTaken
		}
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return storeError(err)
		}
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// storeError translates repository failures into account errors. Driver
// details are flattened into the message and never wrapped.
func storeError(err error) error {
	var uv *accounts.UniqueViolationError
	switch {
	case errors.As(err, &uv) && uv.Field == "email":
		return common.ErrEmailTaken
	case errors.As(err, &uv) && uv.Field == "username":
		return common.ErrUsernameTaken
	case errors.Is(err, common.ErrorNotFound):
		return common.ErrorNotFound
	default:
		return fmt.Errorf("%w: %v", common.ErrStore, err)
	}
}

// txError passes through errors produced inside a transaction body and
// treats anything else (begin or commit failures) as a store error.
func txError(err error) error {
	for _, known := range []error{common.ErrConflict, common.ErrStore, common.ErrTokenIssuanceFailed, common.ErrorNotFound} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", common.ErrStore, err)
}
