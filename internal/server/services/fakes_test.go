package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/judoassistant/tournament-sync/internal/common"
	"github.com/judoassistant/tournament-sync/internal/dbx"
	"github.com/judoassistant/tournament-sync/internal/server/events"
	"github.com/judoassistant/tournament-sync/internal/server/migrate"
	"github.com/judoassistant/tournament-sync/internal/server/models"
	"github.com/judoassistant/tournament-sync/internal/server/repositories/tournaments"
	"github.com/judoassistant/tournament-sync/internal/server/repositories/users"
	"github.com/judoassistant/tournament-sync/internal/server/syncstate"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	mu     sync.Mutex
	byID   map[int64]*models.User
	nextID int64
	err    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]*models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, x := range f.byID {
		if x.Email == u.Email {
			return nil, common.ErrConstraintViolation
		}
	}
	f.nextID++
	u.ID = f.nextID
	cp := *u
	f.byID[u.ID] = &cp
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, x := range f.byID {
		if x.Email == email {
			cp := *x
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) UpdateToken(_ context.Context, id int64, token []byte, exp *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Token, u.TokenExpiration = token, exp
	return nil
}

func (f *fakeUsersRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

// --- tournaments ---

type fakeTournamentsRepo struct {
	mu     sync.Mutex
	rows   map[string]*models.Tournament
	nextID int64
	err    error
}

func newFakeTournamentsRepo() *fakeTournamentsRepo {
	return &fakeTournamentsRepo{rows: map[string]*models.Tournament{}}
}

func (f *fakeTournamentsRepo) Create(_ context.Context, t *models.Tournament) (*models.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.rows[t.WebName]; ok {
		return nil, common.ErrConstraintViolation
	}
	f.nextID++
	t.ID, t.Synced, t.SaveTime = f.nextID, false, nil
	cp := *t
	f.rows[t.WebName] = &cp
	return t, nil
}

func (f *fakeTournamentsRepo) GetByWebName(_ context.Context, webName string) (*models.Tournament, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.rows[webName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTournamentsRepo) Rebind(_ context.Context, webName string, tournamentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[webName]
	if !ok {
		return common.ErrorNotFound
	}
	t.TournamentID, t.Synced = tournamentID, false
	return nil
}

func (f *fakeTournamentsRepo) GetForUpdate(ctx context.Context, webName string) (*models.Tournament, error) {
	return f.GetByWebName(ctx, webName)
}

func (f *fakeTournamentsRepo) SetSyncState(_ context.Context, row *models.Tournament, w syncstate.Write) error {
	if err := w.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	t, ok := f.rows[row.WebName]
	if !ok || t.ID != row.ID || t.Owner != row.Owner {
		return common.ErrorNotFound
	}
	t.Synced = w.Synced
	if w.SaveTime != nil {
		t.SaveTime = w.SaveTime
	}
	return nil
}

func (f *fakeTournamentsRepo) UpdateMetadata(_ context.Context, webName string, md models.TournamentMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[webName]
	if !ok {
		return common.ErrorNotFound
	}
	t.Name, t.Location, t.Date, t.Synced = md.Name, md.Location, md.Date, false
	return nil
}

func (f *fakeTournamentsRepo) list(keep func(*models.Tournament) bool, less func(a, b *models.Tournament) bool, limit int) []*models.Tournament {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Tournament
	for _, t := range f.rows {
		if t.Date != nil && keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *fakeTournamentsRepo) ListUpcoming(_ context.Context, from time.Time, limit int) ([]*models.Tournament, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.list(
		func(t *models.Tournament) bool { return !t.Date.Before(from) },
		func(a, b *models.Tournament) bool { return a.Date.Before(*b.Date) },
		limit), nil
}

func (f *fakeTournamentsRepo) ListPast(_ context.Context, before time.Time, limit int) ([]*models.Tournament, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.list(
		func(t *models.Tournament) bool { return t.Date.Before(before) },
		func(a, b *models.Tournament) bool { return a.Date.After(*b.Date) },
		limit), nil
}

func (f *fakeTournamentsRepo) Delete(_ context.Context, webName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[webName]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, webName)
	return nil
}

// --- manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	t *fakeTournamentsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), t: newFakeTournamentsRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Engine(*sql.DB) (*migrate.Engine, error)      { return nil, nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.u }
func (m *fakeRepoManager) Tournaments(dbx.DBTX) tournaments.Repository  { return m.t }

// --- side effects ---

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeCache struct {
	mu          sync.Mutex
	listing     *models.Listing
	gets        int
	invalidated int
}

func (c *fakeCache) Get(_ context.Context, day string) (*models.Listing, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.listing == nil || c.listing.Day != day {
		return nil, false, nil
	}
	return c.listing, true, nil
}

func (c *fakeCache) Set(_ context.Context, l *models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listing = l
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listing = nil
	c.invalidated++
	return nil
}
