package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/farebook/internal/common"
	"github.com/dmitrijs2005/farebook/internal/dbx"
	"github.com/dmitrijs2005/farebook/internal/sheets"
	"github.com/gin-gonic/gin"
)

func ok(c *gin.Context, data any) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			fail(c, http.StatusInternalServerError, "internal error")
			return
		}
		raw = b
	}
	c.JSON(http.StatusOK, sheets.Response{Success: true, Data: raw})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, sheets.Response{Success: false, Error: msg})
}

// statusFor maps service errors onto HTTP replies.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, sheets.ErrNotFoundMessage
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidAction):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func (s *Server) failErr(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "action failed",
			"action", c.GetString(actionKey),
			"request_id", c.GetString(requestIDKey),
			"error", err)
	}
	fail(c, status, msg)
}

func (s *Server) health(c *gin.Context) {
	if s.db != nil {
		if err := dbx.Ping(c.Request.Context(), s.db, 0); err != nil {
			fail(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	ok(c, gin.H{"status": "ok"})
}

func (s *Server) exec(c *gin.Context) {
	action := c.GetString(actionKey)

	switch action {
	case sheets.ActionPing:
		ok(c, gin.H{"status": "ok"})
		return
	case sheets.ActionLogin:
		s.login(c)
		return
	}

	sheet, op, found := sheets.Parse(action)
	if !found {
		fail(c, http.StatusBadRequest, "unknown action: "+action)
		return
	}
	if op != sheets.OpGet && c.Request.Method != http.MethodPost {
		fail(c, http.StatusMethodNotAllowed, action+" requires POST")
		return
	}

	switch op {
	case sheets.OpGet:
		s.list(c, sheet)
	case sheets.OpAdd:
		s.add(c, sheet)
	case sheets.OpUpdate:
		s.update(c, sheet)
	case sheets.OpDelete:
		s.delete(c, sheet)
	}
}

// decode unmarshals the cached POST body into v.
func decode(c *gin.Context, v any) error {
	raw, _ := c.Get(rawBodyKey)
	b, _ := raw.([]byte)
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

func (s *Server) login(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		fail(c, http.StatusMethodNotAllowed, "login requires POST")
		return
	}
	var req sheets.LoginRequest
	if err := decode(c, &req); err != nil {
		s.failErr(c, err)
		return
	}

	token, err := s.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.logger.Warn(c.Request.Context(), "login failed", "username", req.Username)
		s.failErr(c, err)
		return
	}
	ok(c, sheets.LoginData{Token: token, Username: req.Username})
}

func (s *Server) list(c *gin.Context, sheet string) {
	rows, err := s.sheets.List(c.Request.Context(), sheet)
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, rows)
}

func (s *Server) add(c *gin.Context, sheet string) {
	body, _ := c.Get(bodyKey)
	fields, _ := body.(map[string]json.RawMessage)

	row, err := s.sheets.Add(c.Request.Context(), sheet, fields)
	if err != nil {
		s.failErr(c, err)
		return
	}
	s.logger.Debug(c.Request.Context(), "row stored",
		"sheet", sheet,
		"entry_id", row.EntryID,
		"user", c.GetString(userNameKey),
		"idempotency_key", c.GetHeader(HeaderIdempotencyKey))
	ok(c, row.Data)
}

func (s *Server) update(c *gin.Context, sheet string) {
	var req sheets.UpdateRequest
	if err := decode(c, &req); err != nil {
		s.failErr(c, err)
		return
	}

	row, err := s.sheets.Update(c.Request.Context(), sheet, req.EntryID, req.UpdatedData)
	if err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, row.Data)
}

func (s *Server) delete(c *gin.Context, sheet string) {
	var req sheets.DeleteRequest
	if err := decode(c, &req); err != nil {
		s.failErr(c, err)
		return
	}

	if err := s.sheets.Delete(c.Request.Context(), sheet, req.EntryID); err != nil {
		s.failErr(c, err)
		return
	}
	ok(c, gin.H{"entryId": req.EntryID})
}
