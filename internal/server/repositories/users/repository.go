package users

import (
	"context"
	"time"

	"github.com/judoassistant/tournament-sync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateToken(ctx context.Context, userID int64, token []byte, expiration *time.Time) error
	Delete(ctx context.Context, userID int64) error
}
