package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vidkeeper/internal/dbx"
	"github.com/dmitrijs2005/vidkeeper/internal/server/repositories/accounts"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs against the pool or inside a dbx.WithTx transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
}
