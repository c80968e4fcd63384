package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/farebook/internal/sheets"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

const (
	requestIDKey = "requestID"
	actionKey    = "action"
	bodyKey      = "body"
	rawBodyKey   = "rawBody"
	userNameKey  = "userName"
)

// maxBodyBytes bounds POST bodies; rows are small JSON objects.
const maxBodyBytes = 1 << 20

// requestID propagates the caller's X-Request-ID or mints one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"action", c.GetString(actionKey),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// resolveAction reads the action from the query string (GET) or from the
// JSON body (POST). POST bodies are decoded once and kept on the context.
func (s *Server) resolveAction() gin.HandlerFunc {
	return func(c *gin.Context) {
		var action string

		switch c.Request.Method {
		case http.MethodGet:
			action = c.Query("action")
		case http.MethodPost:
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
			raw, err := c.GetRawData()
			if err != nil {
				fail(c, http.StatusBadRequest, "cannot read body")
				return
			}
			var body map[string]json.RawMessage
			if err := json.Unmarshal(raw, &body); err != nil || body == nil {
				fail(c, http.StatusBadRequest, "body must be a JSON object")
				return
			}
			if v, ok := body["action"]; ok {
				if err := json.Unmarshal(v, &action); err != nil {
					fail(c, http.StatusBadRequest, "action must be a string")
					return
				}
			}
			c.Set(bodyKey, body)
			c.Set(rawBodyKey, raw)
		}

		if action == "" {
			fail(c, http.StatusBadRequest, "missing action")
			return
		}
		c.Set(actionKey, action)
		c.Next()
	}
}

// requireToken checks the bearer token of every action except login and ping.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.GetString(actionKey) {
		case sheets.ActionLogin, sheets.ActionPing:
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			fail(c, http.StatusUnauthorized, "missing token")
			return
		}

		userName, err := s.users.VerifyToken(token)
		if err != nil {
			fail(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Set(userNameKey, userName)
		c.Next()
	}
}
