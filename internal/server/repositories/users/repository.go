// Package users persists the account rows backing the user identity
// resolver: username to surrogate id and back.
package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/sbelyakov/authkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}
