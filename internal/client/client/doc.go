// Package client contains client-side building blocks for farebook.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract for the remote sheet store (see the
//     Client interface): per-type Add/List/Update/Delete, Ping and Login.
//  2. HTTPClient, which speaks the spreadsheet JSON wire format: reads are
//     GET requests with an "action" query parameter, writes are POSTed JSON
//     bodies carrying the action name. Creates send an Idempotency-Key so a
//     retried push never duplicates a row.
//  3. Local persistence bootstrap (OpenDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Failures are mapped to sentinel errors matched with errors.Is:
// ErrUnavailable, ErrUnauthorized, ErrNotFound and ErrRemote.
//
// HTTPClient is safe for concurrent use.
package client
