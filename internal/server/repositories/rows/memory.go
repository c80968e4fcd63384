package rows

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/farebook/internal/common"
	"github.com/dmitrijs2005/farebook/internal/server/models"
)

type key struct {
	sheet string
	id    int64
}

// MemoryRepository keeps rows in process memory. It is safe for concurrent use.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[key]models.Row
	now  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[key]models.Row), now: time.Now}
}

func clone(r models.Row) models.Row {
	r.Data = slices.Clone(r.Data)
	return r
}

func (r *MemoryRepository) List(ctx context.Context, sheet string) ([]models.Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.Row, 0)
	for k, row := range r.rows {
		if k.sheet == sheet {
			result = append(result, clone(row))
		}
	}
	slices.SortFunc(result, func(a, b models.Row) int {
		switch {
		case a.EntryID < b.EntryID:
			return -1
		case a.EntryID > b.EntryID:
			return 1
		}
		return 0
	})
	return result, nil
}

func (r *MemoryRepository) Get(ctx context.Context, sheet string, entryID int64) (*models.Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[key{sheet, entryID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	row = clone(row)
	return &row, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, row *models.Row) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{row.Sheet, row.EntryID}
	now := r.now()
	existing, found := r.rows[k]
	if found {
		row.CreatedAt = existing.CreatedAt
	} else {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	r.rows[k] = clone(*row)
	return !found, nil
}

func (r *MemoryRepository) Update(ctx context.Context, row *models.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{row.Sheet, row.EntryID}
	existing, ok := r.rows[k]
	if !ok {
		return common.ErrNotFound
	}
	row.CreatedAt = existing.CreatedAt
	row.UpdatedAt = r.now()
	r.rows[k] = clone(*row)
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, sheet string, entryID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{sheet, entryID}
	if _, ok := r.rows[k]; !ok {
		return common.ErrNotFound
	}
	delete(r.rows, k)
	return nil
}
