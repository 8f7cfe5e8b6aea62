package repomanager

import (
	"context"
	"database/sql"

	"github.com/judoassistant/tournament-sync/internal/dbx"
	"github.com/judoassistant/tournament-sync/internal/server/migrate"
	"github.com/judoassistant/tournament-sync/internal/server/repositories/tournaments"
	"github.com/judoassistant/tournament-sync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Engine(db *sql.DB) (*migrate.Engine, error)
	Users(db dbx.DBTX) users.Repository
	Tournaments(db dbx.DBTX) tournaments.Repository
}
