// Package services contains application services for the farebook client.
//
// FareService is the sync engine: it writes entries to the local store first,
// notifies subscribers, and pushes changes to the remote sheet store in the
// background. Full refreshes pull every sheet and treat the remote data as
// authoritative except for entries that still have local changes in flight.
//
// AuthService keeps the login session and the bearer token in step, and
// BackupService uploads JSON snapshots to S3-compatible storage.
package services
