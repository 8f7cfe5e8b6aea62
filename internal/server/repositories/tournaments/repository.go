package tournaments

import (
	"context"
	"time"

	"github.com/judoassistant/tournament-sync/internal/server/models"
	"github.com/judoassistant/tournament-sync/internal/server/syncstate"
)

type Repository interface {
	Create(ctx context.Context, t *models.Tournament) (*models.Tournament, error)
	GetByWebName(ctx context.Context, webName string) (*models.Tournament, error)
	GetForUpdate(ctx context.Context, webName string) (*models.Tournament, error)
	Rebind(ctx context.Context, webName string, tournamentID int64) error
	SetSyncState(ctx context.Context, t *models.Tournament, w syncstate.Write) error
	UpdateMetadata(ctx context.Context, webName string, md models.TournamentMetadata) error
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*models.Tournament, error)
	ListPast(ctx context.Context, before time.Time, limit int) ([]*models.Tournament, error)
	Delete(ctx context.Context, webName string) error
}
