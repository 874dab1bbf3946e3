package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/conduit/internal/dbx"
	"github.com/dmitrijs2005/conduit/internal/server/repositories/accounts"
)

// RepositoryManager vends repositories bound to a handle, which may be the
// pool or a transaction, and owns the schema migrations.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
}
