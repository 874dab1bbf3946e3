// Package accounts persists Conduit accounts.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/conduit/internal/server/models"
)

// Repository is the account store. Lookups that match nothing return
// common.ErrorNotFound; writes that break a uniqueness constraint return a
// *UniqueViolationError.
type Repository interface {
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	Update(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error)
}

// UniqueViolationError names the account field whose uniqueness a write
// would have broken.
type UniqueViolationError struct {
	Field string
}

func (e *UniqueViolationError) Error() string {
	return "unique violation on " + e.Field
}
