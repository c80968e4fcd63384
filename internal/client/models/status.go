package models

import "time"

// SyncStatus is a point-in-time view of the sync engine.
type SyncStatus struct {
	IsOnline       bool       `json:"isOnline"`
	PendingSync    int        `json:"pendingSync"`
	PendingDelete  int        `json:"pendingDelete"`
	LastSync       *time.Time `json:"lastSync"`
	SyncInProgress bool       `json:"syncInProgress"`
}

// UserSession is the persisted login blob.
type UserSession struct {
	Username      string    `json:"username"`
	Token         string    `json:"token"`
	Authenticated bool      `json:"authenticated"`
	LoggedInAt    time.Time `json:"loggedInAt"`
}

// Tombstone records a local delete that still has to reach the remote store.
type Tombstone struct {
	EntryID int64     `json:"entryId"`
	Type    EntryType `json:"type"`
}
