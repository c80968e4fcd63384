package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	List(ctx context.Context, kind string) error
	AddDaily(ctx context.Context) error
	AddBooking(ctx context.Context) error
	AddOff(ctx context.Context) error
	Update(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CashBook(ctx context.Context) error
	Status(ctx context.Context) error
	Sync(ctx context.Context) error
	Backup(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the farebook CLI.
//
// It reads a line from reader, parses the first token as the command and
// dispatches to methods on a. The loop exits on EOF, when ctx is done, or
// when the user types "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  help             show available commands
//	  login            authenticate
//	  status           show sync status
//	  exit | quit      leave the program
//
//	Logged in:
//	  (l)ist [type]    list entries, optionally only daily, booking or off
//	  adddaily         add a daily fare entry
//	  addbooking       add a booking entry
//	  addoff           add an off day
//	  update <id>      edit an entry
//	  delete <id>      delete an entry
//	  cashbook         show the cash book with totals
//	  status           show sync status
//	  sync             refresh from the server now
//	  backup           upload a snapshot to S3
//	  logout           log out
//	  exit | quit      leave the program
//
// Errors returned by command handlers are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("fb %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		arg := ""
		if len(parts) > 1 {
			arg = parts[1]
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (l)ist [daily|booking|off], adddaily, addbooking, addoff, update <id>, delete <id>, cashbook, status, sync, backup, logout, exit")
			} else {
				printlnFn("Available commands: login, status, exit")
			}
			continue

		case "login":
			report(a.Login(ctx))
			continue

		case "status":
			report(a.Status(ctx))
			continue

		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if !a.isLoggedIn() {
			switch cmd {
			case "l", "list", "adddaily", "addbooking", "addoff", "update", "delete", "cashbook", "sync", "backup", "logout":
				printlnFn("Please login first")
			default:
				printlnFn("Unknown command:", cmd)
			}
			continue
		}

		switch cmd {
		case "l", "list":
			report(a.List(ctx, arg))
		case "adddaily":
			report(a.AddDaily(ctx))
		case "addbooking":
			report(a.AddBooking(ctx))
		case "addoff":
			report(a.AddOff(ctx))
		case "update":
			report(a.Update(ctx, arg))
		case "delete":
			report(a.Delete(ctx, arg))
		case "cashbook":
			report(a.CashBook(ctx))
		case "sync":
			report(a.Sync(ctx))
		case "backup":
			report(a.Backup(ctx))
		case "logout":
			report(a.Logout(ctx))
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func report(err error) {
	if err != nil {
		printlnFn("Error:", err.Error())
	}
}
