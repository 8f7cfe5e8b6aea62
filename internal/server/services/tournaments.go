package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/judoassistant/tournament-sync/internal/common"
	"github.com/judoassistant/tournament-sync/internal/dbx"
	"github.com/judoassistant/tournament-sync/internal/logging"
	"github.com/judoassistant/tournament-sync/internal/server/cache"
	"github.com/judoassistant/tournament-sync/internal/server/events"
	"github.com/judoassistant/tournament-sync/internal/server/models"
	"github.com/judoassistant/tournament-sync/internal/server/repositories/repomanager"
	"github.com/judoassistant/tournament-sync/internal/server/snapshots"
	"github.com/judoassistant/tournament-sync/internal/server/syncstate"
)

// ListingSize is how many upcoming and past tournaments List returns.
const ListingSize = 20

// WebNameStatus tells a client whether it may register a web name.
type WebNameStatus int

const (
	WebNameFree WebNameStatus = iota
	WebNameOccupiedOtherUser
	WebNameOccupiedOtherTournament
	WebNameOccupiedSameTournament
)

func (s WebNameStatus) String() string {
	switch s {
	case WebNameFree:
		return "free"
	case WebNameOccupiedOtherUser:
		return "occupied_other_user"
	case WebNameOccupiedOtherTournament:
		return "occupied_other_tournament"
	case WebNameOccupiedSameTournament:
		return "occupied_same_tournament"
	default:
		return fmt.Sprintf("WebNameStatus(%d)", int(s))
	}
}

var webNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidWebName reports whether name can be used as a public slug.
func ValidWebName(name string) bool {
	return webNamePattern.MatchString(name)
}

// SaveStatus is the sync state of a tournament as seen by the server.
type SaveStatus struct {
	State    syncstate.State
	SaveTime *time.Time
}

// TournamentService implements the tournament sync workflow. Changes to a
// tournament row are committed before side effects run: events are published
// and the listing cache is invalidated afterwards, and their failures are
// only logged.
type TournamentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	snapshots   snapshots.Store
	events      events.Publisher
	cache       cache.ListingCache
	now         func() time.Time
	logger      logging.Logger
}

func NewTournamentService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	store snapshots.Store,
	publisher events.Publisher,
	listingCache cache.ListingCache,
	logger logging.Logger,
) *TournamentService {
	return &TournamentService{
		db:          db,
		repomanager: m,
		snapshots:   store,
		events:      publisher,
		cache:       listingCache,
		now:         time.Now,
		logger:      logger.With("module", "tournaments"),
	}
}

// CheckWebName reports who, if anyone, holds webName.
func (s *TournamentService) CheckWebName(ctx context.Context, owner, tournamentID int64, webName string) (WebNameStatus, error) {
	t, err := s.repomanager.Tournaments(s.db).GetByWebName(ctx, webName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return WebNameFree, nil
		}
		return 0, s.mapError(ctx, "check web name", webName, err)
	}
	switch {
	case t.Owner != owner:
		return WebNameOccupiedOtherUser, nil
	case t.TournamentID != tournamentID:
		return WebNameOccupiedOtherTournament, nil
	default:
		return WebNameOccupiedSameTournament, nil
	}
}

// RegisterWebName binds webName to the owner's tournament. A web name the
// owner already holds is rebound and marked unsynced.
func (s *TournamentService) RegisterWebName(ctx context.Context, owner, tournamentID int64, webName string) (*models.Tournament, error) {
	if !ValidWebName(webName) {
		return nil, fmt.Errorf("%w: web name %q", common.ErrInvalidInput, webName)
	}

	var result *models.Tournament
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tournaments(tx)

		t, err := repo.GetForUpdate(ctx, webName)
		switch {
		case errors.Is(err, common.ErrorNotFound):
			result, err = repo.Create(ctx, &models.Tournament{Owner: owner, TournamentID: tournamentID, WebName: webName})
			if errors.Is(err, common.ErrConstraintViolation) {
				return common.ErrWebNameTaken
			}
			return err
		case err != nil:
			return err
		case t.Owner != owner:
			return common.ErrWebNameTaken
		}

		if err := repo.Rebind(ctx, webName, tournamentID); err != nil {
			return err
		}
		t.TournamentID, t.Synced = tournamentID, false
		result = t
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrWebNameTaken) {
			return nil, err
		}
		s.logger.Error(ctx, "register web name failed", "web_name", webName, "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "web name registered", "web_name", webName, "owner", owner, "tournament_id", tournamentID)
	s.afterChange(ctx, events.Event{Type: events.TypeModified, WebName: webName, TournamentID: tournamentID})
	return result, nil
}

// owned locks webName inside tx and checks that owner holds it.
func (s *TournamentService) owned(ctx context.Context, tx dbx.DBTX, owner int64, webName string) (*models.Tournament, error) {
	t, err := s.repomanager.Tournaments(tx).GetForUpdate(ctx, webName)
	if err != nil {
		return nil, err
	}
	if t.Owner != owner {
		return nil, common.ErrorForbidden
	}
	return t, nil
}

func (s *TournamentService) mapError(ctx context.Context, op, webName string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrorForbidden),
		errors.Is(err, common.ErrInvalidSyncState):
		return err
	default:
		s.logger.Error(ctx, op+" failed", "web_name", webName, "error", err)
		return common.ErrorInternal
	}
}

// MarkModified records that the owner changed the tournament locally.
func (s *TournamentService) MarkModified(ctx context.Context, owner int64, webName string) error {
	var t *models.Tournament
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if t, err = s.owned(ctx, tx, owner, webName); err != nil {
			return err
		}
		return s.repomanager.Tournaments(tx).SetSyncState(ctx, t, syncstate.MarkModified())
	})
	if err != nil {
		return s.mapError(ctx, "mark modified", webName, err)
	}

	s.afterChange(ctx, events.Event{Type: events.TypeModified, WebName: webName, TournamentID: t.TournamentID})
	return nil
}

// ConfirmSync stores snapshot and marks the tournament synced as of now.
// The row stays locked from the ownership check until the state is written,
// so a concurrent change or release of webName is ordered entirely before or
// after the confirmation. Older snapshots of the row are pruned on success.
func (s *TournamentService) ConfirmSync(ctx context.Context, owner int64, webName string, snapshot []byte) (time.Time, error) {
	var (
		t   *models.Tournament
		w   syncstate.Write
		key string
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if t, err = s.owned(ctx, tx, owner, webName); err != nil {
			return err
		}

		// Postgres keeps microseconds; the snapshot key must match save_time as read back.
		at := s.now().UTC().Truncate(time.Microsecond)
		if key, err = s.snapshots.Put(ctx, snapshots.Ref{WebName: webName, ID: t.ID}, at, snapshot); err != nil {
			return fmt.Errorf("store snapshot: %w", err)
		}

		w = syncstate.Confirm(at)
		return s.repomanager.Tournaments(tx).SetSyncState(ctx, t, w)
	})
	if err != nil {
		return time.Time{}, s.mapError(ctx, "confirm sync", webName, err)
	}

	s.prune(ctx, snapshots.Ref{WebName: webName, ID: t.ID}, key)
	s.logger.Info(ctx, "tournament synced", "web_name", webName, "snapshot", key, "bytes", len(snapshot))
	s.afterChange(ctx, events.Event{Type: events.TypeSynced, WebName: webName, TournamentID: t.TournamentID, SaveTime: w.SaveTime})
	return *w.SaveTime, nil
}

// Snapshot returns the snapshot webName was last synced with. A tournament
// that is not synced has no snapshot.
func (s *TournamentService) Snapshot(ctx context.Context, webName string) ([]byte, error) {
	// A confirmation may prune the key between the two reads; read again once.
	for attempt := 0; ; attempt++ {
		t, err := s.repomanager.Tournaments(s.db).GetByWebName(ctx, webName)
		if err != nil {
			return nil, s.mapError(ctx, "load snapshot", webName, err)
		}
		state, err := syncstate.Of(t.Synced, t.SaveTime)
		if err != nil {
			return nil, s.mapError(ctx, "load snapshot", webName, err)
		}
		if state != syncstate.Synced {
			return nil, common.ErrorNotFound
		}

		data, err := s.snapshots.Get(ctx, snapshots.Ref{WebName: webName, ID: t.ID}, *t.SaveTime)
		if errors.Is(err, common.ErrorNotFound) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, s.mapError(ctx, "load snapshot", webName, err)
		}
		return data, nil
	}
}

func (s *TournamentService) prune(ctx context.Context, ref snapshots.Ref, keep string) {
	if err := s.snapshots.Prune(ctx, ref, keep); err != nil {
		s.logger.Warn(ctx, "prune snapshots failed", "web_name", ref.WebName, "id", ref.ID, "error", err)
	}
}

// UpdateMetadata replaces name, location and date. Concurrent updates are
// last writer wins; the tournament becomes unsynced.
func (s *TournamentService) UpdateMetadata(ctx context.Context, owner int64, webName string, md models.TournamentMetadata) error {
	var t *models.Tournament
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if t, err = s.owned(ctx, tx, owner, webName); err != nil {
			return err
		}
		return s.repomanager.Tournaments(tx).UpdateMetadata(ctx, webName, md)
	})
	if err != nil {
		return s.mapError(ctx, "update metadata", webName, err)
	}

	s.afterChange(ctx, events.Event{Type: events.TypeModified, WebName: webName, TournamentID: t.TournamentID})
	return nil
}

// SaveStatus reports whether the stored snapshot of webName is current.
func (s *TournamentService) SaveStatus(ctx context.Context, webName string) (*SaveStatus, error) {
	t, err := s.repomanager.Tournaments(s.db).GetByWebName(ctx, webName)
	if err != nil {
		return nil, s.mapError(ctx, "save status", webName, err)
	}
	state, err := syncstate.Of(t.Synced, t.SaveTime)
	if err != nil {
		return nil, s.mapError(ctx, "save status", webName, err)
	}
	return &SaveStatus{State: state, SaveTime: t.SaveTime}, nil
}

// Release deletes the owner's tournament, frees its web name and drops its
// snapshots.
func (s *TournamentService) Release(ctx context.Context, owner int64, webName string) error {
	var t *models.Tournament
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if t, err = s.owned(ctx, tx, owner, webName); err != nil {
			return err
		}
		return s.repomanager.Tournaments(tx).Delete(ctx, webName)
	})
	if err != nil {
		return s.mapError(ctx, "release web name", webName, err)
	}

	s.logger.Info(ctx, "web name released", "web_name", webName, "owner", owner)
	s.prune(ctx, snapshots.Ref{WebName: webName, ID: t.ID}, "")
	s.invalidate(ctx)
	return nil
}

// List returns up to ListingSize tournaments dated today or later, soonest
// first, and up to ListingSize earlier ones, latest first.
func (s *TournamentService) List(ctx context.Context) (*models.Listing, error) {
	now := s.now().UTC()
	day := now.Format(time.DateOnly)

	if l, ok, err := s.cache.Get(ctx, day); err != nil {
		s.logger.Warn(ctx, "listing cache read failed", "error", err)
	} else if ok {
		return l, nil
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	repo := s.repomanager.Tournaments(s.db)

	upcoming, err := repo.ListUpcoming(ctx, today, ListingSize)
	if err != nil {
		s.logger.Error(ctx, "list upcoming failed", "error", err)
		return nil, common.ErrorInternal
	}
	past, err := repo.ListPast(ctx, today, ListingSize)
	if err != nil {
		s.logger.Error(ctx, "list past failed", "error", err)
		return nil, common.ErrorInternal
	}

	l := &models.Listing{Day: day, Upcoming: upcoming, Past: past}
	if err := s.cache.Set(ctx, l); err != nil {
		s.logger.Warn(ctx, "listing cache write failed", "error", err)
	}
	return l, nil
}

func (s *TournamentService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn(ctx, "listing cache invalidation failed", "error", err)
	}
}

func (s *TournamentService) afterChange(ctx context.Context, e events.Event) {
	s.invalidate(ctx)
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn(ctx, "publish event failed", "type", e.Type, "web_name", e.WebName, "error", err)
	}
}
