// Package sheets describes the spreadsheet wire format shared by the client
// and the reference server: sheet names, action names and the JSON envelope.
//
// Reads use GET with an "action" query parameter; writes use POST with a JSON
// body {"action": ..., ...fields}. Every reply is {"success", "data"|"error"}.
package sheets

import "encoding/json"

// Op is a CRUD operation on a sheet.
type Op string

const (
	OpAdd    Op = "add"
	OpGet    Op = "get"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Sheet names, one per entry kind.
const (
	SheetDaily   = "daily"
	SheetBooking = "booking"
	SheetOff     = "off"
)

// Non-CRUD actions.
const (
	ActionLogin = "login"
	ActionPing  = "ping"
)

var actions = map[string]map[Op]string{
	SheetDaily: {
		OpAdd:    "addDailyEntry",
		OpGet:    "getDailyEntries",
		OpUpdate: "updateDailyEntry",
		OpDelete: "deleteDailyEntry",
	},
	SheetBooking: {
		OpAdd:    "addBookingEntry",
		OpGet:    "getBookingEntries",
		OpUpdate: "updateBookingEntry",
		OpDelete: "deleteBookingEntry",
	},
	SheetOff: {
		OpAdd:    "addOffDay",
		OpGet:    "getOffDays",
		OpUpdate: "updateOffDay",
		OpDelete: "deleteOffDay",
	},
}

type route struct {
	sheet string
	op    Op
}

var routes = func() map[string]route {
	m := make(map[string]route)
	for sheet, ops := range actions {
		for op, name := range ops {
			m[name] = route{sheet: sheet, op: op}
		}
	}
	return m
}()

// Action returns the action name for op on sheet, or "" if unknown.
func Action(sheet string, op Op) string {
	return actions[sheet][op]
}

// Parse resolves an action name into its sheet and operation.
func Parse(action string) (sheet string, op Op, ok bool) {
	r, ok := routes[action]
	return r.sheet, r.op, ok
}

// Sheets lists every known sheet.
func Sheets() []string {
	return []string{SheetDaily, SheetBooking, SheetOff}
}

// Response is the envelope returned for every action.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// UpdateRequest is the body of an update action.
type UpdateRequest struct {
	Action      string                     `json:"action"`
	EntryID     int64                      `json:"entryId"`
	UpdatedData map[string]json.RawMessage `json:"updatedData"`
}

// DeleteRequest is the body of a delete action.
type DeleteRequest struct {
	Action  string `json:"action"`
	EntryID int64  `json:"entryId"`
}

// LoginRequest is the body of the login action.
type LoginRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginData is the data payload of a successful login.
type LoginData struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// ErrNotFoundMessage is the error text the server uses for unknown entry ids.
const ErrNotFoundMessage = "entry not found"
