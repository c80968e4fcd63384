package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/dmitrijs2005/farebook/internal/sheets"
	"github.com/google/uuid"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// HTTPClient talks to the sheet store over its JSON wire format.
type HTTPClient struct {
	endpointURL string
	http        *http.Client

	mu    sync.RWMutex
	token string
}

func NewHTTPClient(endpointURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(endpointURL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse endpoint: unsupported scheme %q", u.Scheme)
	}
	return &HTTPClient{
		endpointURL: endpointURL,
		http:        &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.get(ctx, sheets.ActionPing, nil)
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (string, error) {
	req := sheets.LoginRequest{Action: sheets.ActionLogin, Username: username, Password: password}
	var data sheets.LoginData
	if err := c.post(ctx, req, "", &data); err != nil {
		return "", err
	}
	if data.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrRemote)
	}
	return data.Token, nil
}

func (c *HTTPClient) List(ctx context.Context, t models.EntryType) ([]models.Entry, error) {
	action, err := actionFor(t, sheets.OpGet)
	if err != nil {
		return nil, err
	}
	var entries []models.Entry
	if err := c.get(ctx, action, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *HTTPClient) Add(ctx context.Context, t models.EntryType, e models.Entry) error {
	action, err := actionFor(t, sheets.OpAdd)
	if err != nil {
		return err
	}
	body, err := wireFields(e)
	if err != nil {
		return err
	}
	body["action"] = mustRaw(action)
	return c.post(ctx, body, strconv.FormatInt(e.EntryID, 10), nil)
}

func (c *HTTPClient) Update(ctx context.Context, t models.EntryType, entryID int64, e models.Entry) error {
	action, err := actionFor(t, sheets.OpUpdate)
	if err != nil {
		return err
	}
	fields, err := wireFields(e)
	if err != nil {
		return err
	}
	delete(fields, "entryId")
	return c.post(ctx, sheets.UpdateRequest{Action: action, EntryID: entryID, UpdatedData: fields}, "", nil)
}

func (c *HTTPClient) Delete(ctx context.Context, t models.EntryType, entryID int64) error {
	action, err := actionFor(t, sheets.OpDelete)
	if err != nil {
		return err
	}
	return c.post(ctx, sheets.DeleteRequest{Action: action, EntryID: entryID}, "", nil)
}

func actionFor(t models.EntryType, op sheets.Op) (string, error) {
	a := sheets.Action(t.Sheet(), op)
	if a == "" {
		return "", fmt.Errorf("unknown entry type %q", t)
	}
	return a, nil
}

// localOnly are Entry fields that never leave the device.
var localOnly = []string{"synced", "pendingSync", "lastModified"}

// wireFields flattens e into the row fields the remote store keeps.
func wireFields(e models.Entry) (map[string]json.RawMessage, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal entry: %w", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("flatten entry: %w", err)
	}
	for _, k := range localOnly {
		delete(m, k)
	}
	return m, nil
}

func mustRaw(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func (c *HTTPClient) get(ctx context.Context, action string, result any) error {
	u, err := url.Parse(c.endpointURL)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("action", action)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, result)
}

func (c *HTTPClient) post(ctx context.Context, body any, idempotencyKey string, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, idempotencyKey)
	}
	return c.do(req, result)
}

func (c *HTTPClient) do(req *http.Request, result any) error {
	req.Header.Set(HeaderRequestID, uuid.NewString())
	req.Header.Set("Accept", "application/json")
	if tok := c.bearer(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, envelopeError(raw, resp.Status))
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, envelopeError(raw, resp.Status))
	}

	var env sheets.Response
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: HTTP %d: malformed reply", ErrRemote, resp.StatusCode)
	}
	if !env.Success {
		return mapRemoteError(resp.StatusCode, env.Error)
	}

	if result != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("%w: decode data: %v", ErrRemote, err)
		}
	}
	return nil
}

func mapRemoteError(status int, msg string) error {
	if status == http.StatusNotFound || msg == sheets.ErrNotFoundMessage {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%w: %s", ErrRemote, msg)
}

func envelopeError(raw []byte, status string) string {
	var env sheets.Response
	if json.Unmarshal(raw, &env) == nil && env.Error != "" {
		return env.Error
	}
	return status
}
