package client

import (
	"context"

	"github.com/dmitrijs2005/farebook/internal/client/models"
)

// Client is the remote store contract. Every entry operation targets the
// sheet of the given entry type.
type Client interface {
	Add(ctx context.Context, t models.EntryType, e models.Entry) error
	List(ctx context.Context, t models.EntryType) ([]models.Entry, error)
	Update(ctx context.Context, t models.EntryType, entryID int64, e models.Entry) error
	Delete(ctx context.Context, t models.EntryType, entryID int64) error

	Ping(ctx context.Context) error
	Login(ctx context.Context, username, password string) (string, error)
	SetToken(token string)
	Close() error
}
