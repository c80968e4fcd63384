package users

import (
	"context"

	"github.com/dmitrijs2005/farebook/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetUserByLogin fails with common.ErrNotFound for unknown names.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}
