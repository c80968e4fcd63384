package rows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/farebook/internal/common"
	"github.com/dmitrijs2005/farebook/internal/dbx"
	"github.com/dmitrijs2005/farebook/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, sheet string) ([]models.Row, error) {
	query :=
		`SELECT entry_id, data, created_at, updated_at FROM sheet_rows
		 WHERE sheet = $1
		 ORDER BY entry_id
		 `

	rs, err := r.db.QueryContext(ctx, query, sheet)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rs.Close()

	result := make([]models.Row, 0)
	for rs.Next() {
		row := models.Row{Sheet: sheet}
		var data []byte
		if err := rs.Scan(&row.EntryID, &data, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		row.Data = data
		result = append(result, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, sheet string, entryID int64) (*models.Row, error) {
	query :=
		`SELECT data, created_at, updated_at FROM sheet_rows
		 WHERE sheet = $1 AND entry_id = $2
		 `

	row := &models.Row{Sheet: sheet, EntryID: entryID}
	var data []byte
	err := r.db.QueryRowContext(ctx, query, sheet, entryID).Scan(&data, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	row.Data = data
	return row, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, row *models.Row) (bool, error) {
	query :=
		`INSERT INTO sheet_rows (sheet, entry_id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (sheet, entry_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
		 RETURNING created_at, updated_at, (xmax = 0)
		 `

	var created bool
	err := r.db.QueryRowContext(ctx, query, row.Sheet, row.EntryID, []byte(row.Data)).
		Scan(&row.CreatedAt, &row.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) Update(ctx context.Context, row *models.Row) error {
	query :=
		`UPDATE sheet_rows SET data = $3, updated_at = now()
		 WHERE sheet = $1 AND entry_id = $2
		 RETURNING updated_at
		 `

	err := r.db.QueryRowContext(ctx, query, row.Sheet, row.EntryID, []byte(row.Data)).Scan(&row.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, sheet string, entryID int64) error {
	query :=
		`DELETE FROM sheet_rows
		 WHERE sheet = $1 AND entry_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, sheet, entryID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
