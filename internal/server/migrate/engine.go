package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/judoassistant/tournament-sync/internal/common"
	"github.com/judoassistant/tournament-sync/internal/logging"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
)

// RevisionStatus is one line of History.
type RevisionStatus struct {
	Revision  Revision
	Applied   bool
	AppliedAt time.Time
	Current   bool
}

// Engine applies a Chain to one database. The current revision lives in
// goose's version table (version N is the N-th revision of the chain) and is
// written in the same transaction as the revision's ops, so a failed
// revision leaves the previous one current.
//
// The engine assumes exclusive access to the schema for the duration of a
// call; serialize deployments externally, e.g. WithSessionLocker on Postgres.
type Engine struct {
	dialect  Dialect
	chain    *Chain
	logger   logging.Logger
	locker   lock.SessionLocker
	provider *goose.Provider
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSessionLocker holds a database session lock while goose touches the
// schema.
func WithSessionLocker(l lock.SessionLocker) Option {
	return func(e *Engine) { e.locker = l }
}

// newProvider is a seam for tests.
var newProvider = goose.NewProvider

// NewEngine builds an engine for db. The handle is borrowed: closing it stays
// the caller's job.
func NewEngine(db *sql.DB, dialect Dialect, chain *Chain, opts ...Option) (*Engine, error) {
	e := &Engine{dialect: dialect, chain: chain, logger: logging.Nop{}}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("module", "migrate", "dialect", dialect.Name())

	migrations := make([]*goose.Migration, 0, chain.Len())
	for i, rev := range chain.Revisions() {
		migrations = append(migrations, goose.NewGoMigration(
			int64(i+1),
			&goose.GoFunc{RunTx: e.runOps(rev.Upgrade), Mode: goose.TransactionEnabled},
			&goose.GoFunc{RunTx: e.runOps(rev.Downgrade), Mode: goose.TransactionEnabled},
		))
	}

	providerOpts := []goose.ProviderOption{
		goose.WithDisableGlobalRegistry(true),
		goose.WithGoMigrations(migrations...),
	}
	if e.locker != nil {
		providerOpts = append(providerOpts, goose.WithSessionLocker(e.locker))
	}

	p, err := newProvider(dialect.Goose(), db, nil, providerOpts...)
	if err != nil {
		return nil, fmt.Errorf("migrate: provider: %w", err)
	}
	e.provider = p
	return e, nil
}

func (e *Engine) Chain() *Chain {
	return e.chain
}

func (e *Engine) runOps(ops []Op) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, op := range ops {
			for _, stmt := range op.Statements(e.dialect) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("%s: %w", stmt, err)
				}
			}
		}
		return nil
	}
}

// Current returns the persisted revision, None for an empty schema.
func (e *Engine) Current(ctx context.Context) (string, error) {
	v, err := e.provider.GetDBVersion(ctx)
	if err != nil {
		return None, fmt.Errorf("migrate: read version: %w", err)
	}
	id, err := e.chain.At(int(v))
	if err != nil {
		return None, fmt.Errorf("database schema is newer than this build: %w", err)
	}
	return id, nil
}

func (e *Engine) expect(ctx context.Context, current string) error {
	persisted, err := e.Current(ctx)
	if err != nil {
		return err
	}
	if persisted != current {
		return fmt.Errorf("%w: schema is at %s, not %s", common.ErrRevisionNotFound, Display(persisted), Display(current))
	}
	return nil
}

// Apply upgrades from current to its successor and returns the successor's id.
// current must match the persisted revision.
func (e *Engine) Apply(ctx context.Context, current string) (string, error) {
	if err := e.expect(ctx, current); err != nil {
		return current, err
	}
	next, err := e.chain.Successor(current)
	if err != nil {
		return current, err
	}

	start := time.Now()
	if _, err := e.provider.ApplyVersion(ctx, int64(e.chain.Position(next.ID)), true); err != nil {
		e.logger.Error(ctx, "upgrade failed", "revision", next.ID, "error", err)
		return current, fmt.Errorf("%w: upgrade %s: %w", common.ErrTransactionFailure, next.ID, err)
	}
	e.logger.Info(ctx, "revision applied",
		"revision", next.ID, "down_revision", Display(next.DownRevision),
		"description", next.Description, "took", time.Since(start))
	return next.ID, nil
}

// Revert downgrades current and returns its DownRevision.
func (e *Engine) Revert(ctx context.Context, current string) (string, error) {
	if current == None {
		return None, common.ErrNoHistory
	}
	if err := e.expect(ctx, current); err != nil {
		return current, err
	}
	rev, ok := e.chain.Get(current)
	if !ok {
		return current, fmt.Errorf("%w: unknown revision %s", common.ErrRevisionNotFound, current)
	}
	if rev.Lossy != "" {
		e.logger.Warn(ctx, "lossy downgrade", "revision", rev.ID, "loss", rev.Lossy)
	}

	start := time.Now()
	if _, err := e.provider.ApplyVersion(ctx, int64(e.chain.Position(rev.ID)), false); err != nil {
		e.logger.Error(ctx, "downgrade failed", "revision", rev.ID, "error", err)
		return current, fmt.Errorf("%w: downgrade %s: %w", common.ErrTransactionFailure, rev.ID, err)
	}
	e.logger.Info(ctx, "revision reverted",
		"revision", rev.ID, "now", Display(rev.DownRevision), "took", time.Since(start))
	return rev.DownRevision, nil
}

// UpgradeToHead applies every pending revision and returns their ids.
// Being at head already is not an error.
func (e *Engine) UpgradeToHead(ctx context.Context) ([]string, error) {
	cur, err := e.Current(ctx)
	if err != nil {
		return nil, err
	}
	var applied []string
	for cur != e.chain.Head() {
		cur, err = e.Apply(ctx, cur)
		if err != nil {
			return applied, err
		}
		applied = append(applied, cur)
	}
	if len(applied) == 0 {
		e.logger.Debug(ctx, "schema already at head", "revision", cur)
	}
	return applied, nil
}

// DowngradeTo reverts revisions until target is current and returns the ids
// that were reverted. target must be None or a revision at or behind the
// current one.
func (e *Engine) DowngradeTo(ctx context.Context, target string) ([]string, error) {
	targetPos := e.chain.Position(target)
	if targetPos < 0 {
		return nil, fmt.Errorf("%w: unknown revision %s", common.ErrRevisionNotFound, target)
	}
	cur, err := e.Current(ctx)
	if err != nil {
		return nil, err
	}
	if targetPos > e.chain.Position(cur) {
		return nil, fmt.Errorf("%w: %s is ahead of current %s", common.ErrRevisionNotFound, target, Display(cur))
	}

	var reverted []string
	for cur != target {
		prev, err := e.Revert(ctx, cur)
		if err != nil {
			return reverted, err
		}
		reverted = append(reverted, cur)
		cur = prev
	}
	return reverted, nil
}

// History lists every revision, root first, with its applied state.
func (e *Engine) History(ctx context.Context) ([]RevisionStatus, error) {
	statuses, err := e.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: status: %w", err)
	}
	cur, err := e.Current(ctx)
	if err != nil {
		return nil, err
	}

	applied := make(map[int64]time.Time, len(statuses))
	for _, s := range statuses {
		if s.State == goose.StateApplied {
			applied[s.Source.Version] = s.AppliedAt
		}
	}

	out := make([]RevisionStatus, 0, e.chain.Len())
	for i, rev := range e.chain.Revisions() {
		at, ok := applied[int64(i+1)]
		out = append(out, RevisionStatus{Revision: rev, Applied: ok, AppliedAt: at, Current: rev.ID == cur})
	}
	return out, nil
}

// AtHead reports whether the schema is fully upgraded.
func (e *Engine) AtHead(ctx context.Context) (bool, error) {
	cur, err := e.Current(ctx)
	if err != nil {
		if errors.Is(err, common.ErrRevisionNotFound) {
			return false, nil
		}
		return false, err
	}
	return cur == e.chain.Head(), nil
}
