package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/apikit/internal/dbx"
	"github.com/dmitrijs2005/apikit/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/apikit/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can
// run them either on the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Tokens(db dbx.DBTX) tokens.Repository
}
