// Package rows stores sheet rows. Lookups of unknown rows fail with
// common.ErrNotFound.
package rows

import (
	"context"

	"github.com/dmitrijs2005/farebook/internal/server/models"
)

type Repository interface {
	// List returns the rows of sheet ordered by entry id.
	List(ctx context.Context, sheet string) ([]models.Row, error)
	Get(ctx context.Context, sheet string, entryID int64) (*models.Row, error)
	// Upsert inserts row or replaces the data of the row with the same key.
	// created reports whether a new row was inserted.
	Upsert(ctx context.Context, row *models.Row) (created bool, err error)
	Update(ctx context.Context, row *models.Row) error
	Delete(ctx context.Context, sheet string, entryID int64) error
}
