// Package tournaments provides the PostgreSQL-backed repository for
// tournaments and their sync state.
//
// Every statement that changes a tournament also clears synced, and the
// synced/save_time pair is always written by a single statement.
package tournaments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/judoassistant/tournament-sync/internal/common"
	"github.com/judoassistant/tournament-sync/internal/dbx"
	"github.com/judoassistant/tournament-sync/internal/server/models"
	"github.com/judoassistant/tournament-sync/internal/server/syncstate"
)

const columns = `id, owner, tournament_id, web_name, synced, save_time, name, location, date`

// PostgresRepository implements tournament storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db       dbx.DBTX
	rowLocks bool
}

type Option func(*PostgresRepository)

// WithRowLocks makes GetForUpdate take a row lock with SELECT ... FOR UPDATE.
// SQLite has no row locks and serializes writers with BEGIN IMMEDIATE instead.
func WithRowLocks() Option {
	return func(r *PostgresRepository) { r.rowLocks = true }
}

func NewPostgresRepository(db dbx.DBTX, opts ...Option) *PostgresRepository {
	r := &PostgresRepository{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create inserts an unsynced tournament without metadata. A taken web name or
// an unknown owner is reported as common.ErrConstraintViolation.
func (r *PostgresRepository) Create(ctx context.Context, t *models.Tournament) (*models.Tournament, error) {

	query :=
		`INSERT INTO tournaments (owner, tournament_id, web_name)
		 VALUES ($1, $2, $3)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query, t.Owner, t.TournamentID, t.WebName).Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	t.Synced, t.SaveTime = false, nil

	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Tournament, error) {
	var (
		t              models.Tournament
		saveTime, date sql.NullTime
		name, location sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Owner, &t.TournamentID, &t.WebName,
		&t.Synced, &saveTime, &name, &location, &date); err != nil {
		return nil, err
	}
	if saveTime.Valid {
		t.SaveTime = &saveTime.Time
	}
	if name.Valid {
		t.Name = &name.String
	}
	if location.Valid {
		t.Location = &location.String
	}
	if date.Valid {
		t.Date = &date.Time
	}
	return &t, nil
}

func (r *PostgresRepository) GetByWebName(ctx context.Context, webName string) (*models.Tournament, error) {
	return r.get(ctx, webName, false)
}

// GetForUpdate reads the tournament and, inside a transaction, keeps it locked
// until commit.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, webName string) (*models.Tournament, error) {
	return r.get(ctx, webName, r.rowLocks)
}

func (r *PostgresRepository) get(ctx context.Context, webName string, lock bool) (*models.Tournament, error) {
	query := `SELECT ` + columns + ` FROM tournaments
		 WHERE web_name = $1
		 `
	if lock {
		query += `FOR UPDATE`
	}

	t, err := scan(r.db.QueryRowContext(ctx, query, webName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Rebind points an existing web name at another tournament of the same owner.
func (r *PostgresRepository) Rebind(ctx context.Context, webName string, tournamentID int64) error {
	query :=
		`UPDATE tournaments SET tournament_id = $1, synced = false
		 WHERE web_name = $2
		 `

	res, err := r.db.ExecContext(ctx, query, tournamentID, webName)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return expectOne(res)
}

// SetSyncState writes w to the row t was read from. The write matches on id
// and owner as well as web name, so a row released and registered again in
// the meantime is left alone and common.ErrorNotFound is returned. A write
// without SaveTime leaves save_time as it is.
func (r *PostgresRepository) SetSyncState(ctx context.Context, t *models.Tournament, w syncstate.Write) error {
	if err := w.Validate(); err != nil {
		return err
	}

	var (
		res sql.Result
		err error
	)
	if w.SaveTime == nil {
		res, err = r.db.ExecContext(ctx,
			`UPDATE tournaments SET synced = $1 WHERE web_name = $2 AND id = $3 AND owner = $4`,
			w.Synced, t.WebName, t.ID, t.Owner)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE tournaments SET synced = $1, save_time = $2 WHERE web_name = $3 AND id = $4 AND owner = $5`,
			w.Synced, *w.SaveTime, t.WebName, t.ID, t.Owner)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return expectOne(res)
}

// UpdateMetadata overwrites name, location and date and marks the tournament
// unsynced.
func (r *PostgresRepository) UpdateMetadata(ctx context.Context, webName string, md models.TournamentMetadata) error {
	query :=
		`UPDATE tournaments SET name = $1, location = $2, date = $3, synced = false
		 WHERE web_name = $4
		 `

	res, err := r.db.ExecContext(ctx, query, md.Name, md.Location, md.Date, webName)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
	}
	return expectOne(res)
}

// ListUpcoming returns tournaments dated on or after from, soonest first.
func (r *PostgresRepository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*models.Tournament, error) {
	query := `SELECT ` + columns + ` FROM tournaments
		WHERE date >= $1 ORDER BY date ASC LIMIT $2
		`
	return r.list(ctx, query, from, limit)
}

// ListPast returns tournaments dated before before, latest first.
func (r *PostgresRepository) ListPast(ctx context.Context, before time.Time, limit int) ([]*models.Tournament, error) {
	query := `SELECT ` + columns + ` FROM tournaments
		WHERE date < $1 ORDER BY date DESC LIMIT $2
		`
	return r.list(ctx, query, before, limit)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select tournaments: %w", err)
	}
	defer rows.Close()

	var result []*models.Tournament
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete releases a web name.
func (r *PostgresRepository) Delete(ctx context.Context, webName string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE web_name = $1`, webName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
