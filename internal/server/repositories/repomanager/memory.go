package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/farebook/internal/dbx"
	"github.com/dmitrijs2005/farebook/internal/server/repositories/rows"
	"github.com/dmitrijs2005/farebook/internal/server/repositories/users"
)

// MemoryRepositoryManager hands out the same in-memory repositories for every
// handle; the db argument is ignored. Data lives as long as the process.
type MemoryRepositoryManager struct {
	rows  *rows.MemoryRepository
	users *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		rows:  rows.NewMemoryRepository(),
		users: users.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Rows(dbx.DBTX) rows.Repository { return m.rows }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }
