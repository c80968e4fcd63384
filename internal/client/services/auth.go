package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/farebook/internal/client/client"
	"github.com/dmitrijs2005/farebook/internal/client/models"
	"github.com/dmitrijs2005/farebook/internal/common"
	"github.com/dmitrijs2005/farebook/internal/logging"
)

// SessionStore persists the login blob. *storage.LocalStore implements it.
type SessionStore interface {
	SaveUserData(ctx context.Context, u models.UserSession) bool
	LoadUserData(ctx context.Context) *models.UserSession
	ClearUserData(ctx context.Context)
	IsUserLoggedIn(ctx context.Context) bool
}

// AuthService keeps the stored session and the client's bearer token in step.
type AuthService struct {
	client client.Client
	store  SessionStore
	log    logging.Logger
	now    func() time.Time
}

func NewAuthService(c client.Client, store SessionStore, log logging.Logger) *AuthService {
	if log == nil {
		log = logging.Nop()
	}
	return &AuthService{client: c, store: store, log: log.With("component", "auth"), now: time.Now}
}

// Login authenticates against the remote store and persists the session.
func (a *AuthService) Login(ctx context.Context, username, password string) (*models.UserSession, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", common.ErrValidation)
	}

	token, err := a.client.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	u := models.UserSession{
		Username:      username,
		Token:         token,
		Authenticated: true,
		LoggedInAt:    a.now().UTC(),
	}
	if !a.store.SaveUserData(ctx, u) {
		a.log.Warn(ctx, "session not persisted", "username", username)
	}
	a.client.SetToken(token)
	a.log.Info(ctx, "logged in", "username", username)
	return &u, nil
}

// Logout forgets the session locally. Pending data is kept.
func (a *AuthService) Logout(ctx context.Context) {
	a.store.ClearUserData(ctx)
	a.client.SetToken("")
}

// RestoreSession reinstates a stored session's token. It returns nil when
// nobody is logged in.
func (a *AuthService) RestoreSession(ctx context.Context) *models.UserSession {
	u := a.store.LoadUserData(ctx)
	if u == nil || !u.Authenticated {
		return nil
	}
	a.client.SetToken(u.Token)
	return u
}

func (a *AuthService) IsLoggedIn(ctx context.Context) bool {
	return a.store.IsUserLoggedIn(ctx)
}

// CurrentUser returns the logged-in username or "".
func (a *AuthService) CurrentUser(ctx context.Context) string {
	if u := a.store.LoadUserData(ctx); u != nil && u.Authenticated {
		return u.Username
	}
	return ""
}
