// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and the schema migration engine.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/judoassistant/tournament-sync/internal/dbx"
	"github.com/judoassistant/tournament-sync/internal/logging"
	"github.com/judoassistant/tournament-sync/internal/server/migrate"
	"github.com/judoassistant/tournament-sync/internal/server/migrations"
	"github.com/judoassistant/tournament-sync/internal/server/repositories/tournaments"
	"github.com/judoassistant/tournament-sync/internal/server/repositories/users"
	"github.com/pressly/goose/v3/lock"
	_ "modernc.org/sqlite"
)

// PostgresRepositoryManager vends repository implementations and the
// migration engine. Queries use Postgres placeholders, which SQLite also
// accepts, so the SQLite dialect works for local development.
type PostgresRepositoryManager struct {
	dialect migrate.Dialect
	logger  logging.Logger
}

// NewPostgresRepositoryManager constructs a RepositoryManager for the given
// dialect.
func NewPostgresRepositoryManager(dialect migrate.Dialect, logger logging.Logger) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{dialect: dialect, logger: logger}
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Tournaments returns a tournaments.Repository bound to the provided DBTX.
// On Postgres GetForUpdate takes a row lock.
func (m *PostgresRepositoryManager) Tournaments(db dbx.DBTX) tournaments.Repository {
	if _, ok := m.dialect.(migrate.Postgres); ok {
		return tournaments.NewPostgresRepository(db, tournaments.WithRowLocks())
	}
	return tournaments.NewPostgresRepository(db)
}

// newSessionLocker is a seam for testing.
var newSessionLocker = func() (lock.SessionLocker, error) {
	return lock.NewPostgresSessionLocker()
}

// Engine builds a migration engine over the schema chain. On Postgres the
// engine holds an advisory lock while it runs so concurrent deployments
// serialize.
func (m *PostgresRepositoryManager) Engine(db *sql.DB) (*migrate.Engine, error) {
	chain, err := migrations.Chain()
	if err != nil {
		return nil, err
	}

	opts := []migrate.Option{migrate.WithLogger(m.logger)}
	if _, ok := m.dialect.(migrate.Postgres); ok {
		locker, err := newSessionLocker()
		if err != nil {
			return nil, fmt.Errorf("advisory lock: %w", err)
		}
		opts = append(opts, migrate.WithSessionLocker(locker))
	}

	return migrate.NewEngine(db, m.dialect, chain, opts...)
}

// RunMigrations upgrades the schema to head.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	e, err := m.Engine(db)
	if err != nil {
		return err
	}
	applied, err := e.UpgradeToHead(ctx)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		m.logger.Info(ctx, "schema upgraded", "applied", applied, "head", e.Chain().Head())
	}
	return nil
}
