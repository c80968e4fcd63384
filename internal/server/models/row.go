// Package models defines the server-side persistence models.
package models

import (
	"encoding/json"
	"time"
)

// Row is one stored record of a sheet, keyed by the client-assigned entry id.
// Data is the JSON object exactly as the client sent it.
type Row struct {
	Sheet     string
	EntryID   int64
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}
