package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/farebook/internal/common"
	"github.com/dmitrijs2005/farebook/internal/dbx"
	"github.com/dmitrijs2005/farebook/internal/logging"
	"github.com/dmitrijs2005/farebook/internal/server/auth"
	"github.com/dmitrijs2005/farebook/internal/server/config"
	"github.com/dmitrijs2005/farebook/internal/server/models"
	"github.com/dmitrijs2005/farebook/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the user does not exist so that unknown
// names take as long as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("farebook"), bcrypt.DefaultCost)

// UserService checks credentials and issues bearer tokens.
type UserService struct {
	db                    *sql.DB
	repomanager           repomanager.RepositoryManager
	log                   logging.Logger
	jwtSecret             []byte
	tokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *UserService {
	return &UserService{
		db:                    db,
		repomanager:           m,
		log:                   log,
		jwtSecret:             []byte(cfg.SecretKey),
		tokenValidityDuration: cfg.TokenValidityDuration,
	}
}

func (s *UserService) handle() dbx.DBTX {
	if s.db == nil {
		return nil
	}
	return s.db
}

// EnsureUser creates userName with password unless it already exists.
func (s *UserService) EnsureUser(ctx context.Context, userName, password string) error {
	repo := s.repomanager.Users(s.handle())

	_, err := repo.GetUserByLogin(ctx, userName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("error looking up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	if _, err := repo.Create(ctx, &models.User{UserName: userName, PasswordHash: hash}); err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}
	s.log.Info(ctx, "user created", "username", userName)
	return nil
}

// Login verifies the credentials and returns a signed token. Unknown users
// and wrong passwords both fail with common.ErrUnauthorized.
func (s *UserService) Login(ctx context.Context, userName, password string) (string, error) {
	repo := s.repomanager.Users(s.handle())
	user, err := repo.GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return "", common.ErrUnauthorized
		}
		s.log.Error(ctx, "user lookup failed", "error", err)
		return "", common.ErrInternal
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return "", common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(user.UserName, s.jwtSecret, s.tokenValidityDuration)
	if err != nil {
		return "", common.ErrInternal
	}
	return token, nil
}

// VerifyToken returns the username a token was issued to.
func (s *UserService) VerifyToken(token string) (string, error) {
	return auth.GetUsernameFromToken(token, s.jwtSecret)
}
