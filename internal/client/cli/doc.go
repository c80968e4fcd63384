// Package cli provides the interactive farebook command-line client.
//
// It sits on top of the sync engine: every command reads or writes the local
// collection first and lets the engine reconcile with the remote store in the
// background. Typical flow: restore the stored session (or prompt for
// credentials), load local data, start the connectivity watcher and execute
// user commands.
//
// Key features:
//   - Login / Logout
//   - Add daily, booking and off-day entries
//   - Update / Delete entries by id
//   - List entries and the derived cash book with totals
//   - Sync status, forced refresh and S3 backup
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
