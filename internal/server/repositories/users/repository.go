package users

import (
	"context"

	"github.com/mkuzmins/homeboard/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
}
