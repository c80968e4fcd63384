package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/farebook/internal/dbx"
	"github.com/dmitrijs2005/farebook/internal/server/repositories/rows"
	"github.com/dmitrijs2005/farebook/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a connection or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Rows(db dbx.DBTX) rows.Repository
	Users(db dbx.DBTX) users.Repository
}
