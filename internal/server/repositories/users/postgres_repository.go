// Package users provides the PostgreSQL-backed repository for user accounts.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/judoassistant/tournament-sync/internal/common"
	"github.com/judoassistant/tournament-sync/internal/dbx"
	"github.com/judoassistant/tournament-sync/internal/server/models"
)

// PostgresRepository implements user storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts user and fills in its id. A duplicate email is reported as
// common.ErrConstraintViolation.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (email, password_hash, token, token_expiration)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Token, user.TokenExpiration).Scan(&user.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", dbx.Classify(err))
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, password_hash, token, token_expiration FROM users
		 WHERE email = $1
		 `

	user := &models.User{}
	var expiration sql.NullTime
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Token, &expiration)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if expiration.Valid {
		user.TokenExpiration = &expiration.Time
	}

	return user, nil
}

// UpdateToken replaces the user's token and expiration; nil values clear them.
func (r *PostgresRepository) UpdateToken(ctx context.Context, userID int64, token []byte, expiration *time.Time) error {
	query :=
		`UPDATE users SET token = $1, token_expiration = $2
		 WHERE id = $3
		 `

	res, err := r.db.ExecContext(ctx, query, token, expiration, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// Delete removes a user. Users that still own tournaments cannot be deleted;
// that is reported as common.ErrConstraintViolation.
func (r *PostgresRepository) Delete(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", dbx.Classify(err))
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
