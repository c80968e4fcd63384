// Package services contains the business logic of the sheet server. Handlers
// talk to SheetService and UserService only; persistence goes through a
// repomanager.RepositoryManager.
package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/farebook/internal/common"
	"github.com/dmitrijs2005/farebook/internal/dbx"
	"github.com/dmitrijs2005/farebook/internal/logging"
	"github.com/dmitrijs2005/farebook/internal/server/models"
	"github.com/dmitrijs2005/farebook/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/farebook/internal/sheets"
)

const entryIDField = "entryId"

// SheetService stores rows of the daily, booking and off sheets as opaque
// JSON objects keyed by the client-assigned entryId.
type SheetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger

	// mu serializes read-modify-write updates; the memory repositories
	// have no transactions.
	mu sync.Mutex
}

// NewSheetService constructs a SheetService. db may be nil when rm keeps
// data in memory.
func NewSheetService(db *sql.DB, rm repomanager.RepositoryManager, log logging.Logger) *SheetService {
	return &SheetService{db: db, repomanager: rm, log: log}
}

func checkSheet(sheet string) error {
	if !slices.Contains(sheets.Sheets(), sheet) {
		return fmt.Errorf("%w: unknown sheet %q", common.ErrInvalidAction, sheet)
	}
	return nil
}

// handle returns the connection repositories bind to. A nil *sql.DB must not
// leak into the DBTX interface as a typed nil.
func (s *SheetService) handle() dbx.DBTX {
	if s.db == nil {
		return nil
	}
	return s.db
}

func (s *SheetService) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// List returns the stored objects of sheet ordered by entry id.
func (s *SheetService) List(ctx context.Context, sheet string) ([]json.RawMessage, error) {
	if err := checkSheet(sheet); err != nil {
		return nil, err
	}
	rows, err := s.repomanager.Rows(s.handle()).List(ctx, sheet)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", sheet, err)
	}
	result := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.Data)
	}
	return result, nil
}

// Add stores fields as a row of sheet. A repeated add of the same entryId
// replaces the stored object, so retried creates are harmless.
func (s *SheetService) Add(ctx context.Context, sheet string, fields map[string]json.RawMessage) (*models.Row, error) {
	if err := checkSheet(sheet); err != nil {
		return nil, err
	}
	id, err := parseEntryID(fields[entryIDField])
	if err != nil {
		return nil, err
	}

	clean := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		if k != "action" {
			clean[k] = v
		}
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	row := &models.Row{Sheet: sheet, EntryID: id, Data: data}
	created, err := s.repomanager.Rows(s.handle()).Upsert(ctx, row)
	if err != nil {
		return nil, fmt.Errorf("error storing %s/%d: %w", sheet, id, err)
	}
	if !created {
		s.log.Info(ctx, "duplicate add replaced row", "sheet", sheet, "entry_id", id)
	}
	return row, nil
}

// Update merges updated into the stored object of entryID. The entryId key
// of the stored object is never overwritten.
func (s *SheetService) Update(ctx context.Context, sheet string, entryID int64, updated map[string]json.RawMessage) (*models.Row, error) {
	if err := checkSheet(sheet); err != nil {
		return nil, err
	}
	if entryID <= 0 {
		return nil, fmt.Errorf("%w: entryId must be positive", common.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result *models.Row
	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Rows(tx)
		row, err := repo.Get(ctx, sheet, entryID)
		if err != nil {
			return err
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal(row.Data, &obj); err != nil {
			return fmt.Errorf("stored row %s/%d: %w", sheet, entryID, err)
		}
		if obj == nil {
			obj = make(map[string]json.RawMessage, len(updated))
		}
		for k, v := range updated {
			if k == entryIDField || k == "action" {
				continue
			}
			obj[k] = v
		}
		if row.Data, err = json.Marshal(obj); err != nil {
			return err
		}
		if err := repo.Update(ctx, row); err != nil {
			return err
		}
		result = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the row of entryID. Unknown ids fail with common.ErrNotFound.
func (s *SheetService) Delete(ctx context.Context, sheet string, entryID int64) error {
	if err := checkSheet(sheet); err != nil {
		return err
	}
	return s.repomanager.Rows(s.handle()).Delete(ctx, sheet, entryID)
}

func parseEntryID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("%w: entryId is required", common.ErrValidation)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, fmt.Errorf("%w: entryId must be a number", common.ErrValidation)
	}
	id, err := n.Int64()
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: entryId must be a positive integer", common.ErrValidation)
	}
	return id, nil
}
