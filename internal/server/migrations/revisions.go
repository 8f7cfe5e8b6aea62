// Package migrations holds the revision chain of the tournament store schema.
package migrations

import "github.com/judoassistant/tournament-sync/internal/server/migrate"

const (
	CreateUsers           = "a1f3c2e9d4b0"
	CreateTournaments     = "5c8e7b2a1d39"
	WidenTournamentID     = "e2b94f0c7a61"
	AddSyncState          = "7d0a6c3e9f25"
	AddTournamentMetadata = "c41b8e5f2a07"
)

// Head is the newest revision this build knows about.
const Head = AddTournamentMetadata

// Revisions returns every revision in declaration order.
func Revisions() []migrate.Revision {
	return []migrate.Revision{
		{
			ID:           CreateUsers,
			DownRevision: migrate.None,
			Description:  "create users",
			Upgrade: []migrate.Op{
				migrate.CreateTable{Name: "users", Columns: []migrate.Column{
					{Name: "id", Type: migrate.Serial, PrimaryKey: true},
					{Name: "email", Type: migrate.Text, NotNull: true, Unique: true},
					{Name: "password_hash", Type: migrate.Char(60), NotNull: true},
					{Name: "token", Type: migrate.Binary(32)},
					{Name: "token_expiration", Type: migrate.Timestamp},
				}},
			},
			Downgrade: []migrate.Op{migrate.DropTable{Name: "users"}},
		},
		{
			ID:           CreateTournaments,
			DownRevision: CreateUsers,
			Description:  "create tournaments",
			Upgrade: []migrate.Op{
				migrate.CreateTable{Name: "tournaments", Columns: []migrate.Column{
					{Name: "id", Type: migrate.Serial, PrimaryKey: true},
					{Name: "owner", Type: migrate.Integer, NotNull: true, References: &migrate.ForeignKey{Table: "users", Column: "id"}},
					{Name: "tournament_id", Type: migrate.Integer, NotNull: true},
					{Name: "web_name", Type: migrate.Text, NotNull: true, Unique: true},
				}},
			},
			Downgrade: []migrate.Op{migrate.DropTable{Name: "tournaments"}},
		},
		{
			ID:           WidenTournamentID,
			DownRevision: CreateTournaments,
			Description:  "widen tournaments.tournament_id to 64 bits",
			Upgrade: []migrate.Op{
				migrate.AlterColumnType{Table: "tournaments", Column: "tournament_id", Type: migrate.BigInt},
			},
			Downgrade: []migrate.Op{
				migrate.AlterColumnType{Table: "tournaments", Column: "tournament_id", Type: migrate.Integer},
			},
			Lossy: "tournament ids outside the 32-bit range fail or are truncated on narrowing",
		},
		{
			ID:           AddSyncState,
			DownRevision: WidenTournamentID,
			Description:  "add tournaments.synced and tournaments.save_time",
			Upgrade: []migrate.Op{
				migrate.AddColumn{Table: "tournaments", Column: migrate.Column{Name: "synced", Type: migrate.Bool, NotNull: true, Default: "false"}},
				migrate.AddColumn{Table: "tournaments", Column: migrate.Column{Name: "save_time", Type: migrate.Timestamp}},
			},
			Downgrade: []migrate.Op{
				migrate.DropColumn{Table: "tournaments", Column: "save_time"},
				migrate.DropColumn{Table: "tournaments", Column: "synced"},
			},
		},
		{
			ID:           AddTournamentMetadata,
			DownRevision: AddSyncState,
			Description:  "add tournaments.name, location and date",
			Upgrade: []migrate.Op{
				migrate.AddColumn{Table: "tournaments", Column: migrate.Column{Name: "name", Type: migrate.Text}},
				migrate.AddColumn{Table: "tournaments", Column: migrate.Column{Name: "location", Type: migrate.Text}},
				migrate.AddColumn{Table: "tournaments", Column: migrate.Column{Name: "date", Type: migrate.Date}},
			},
			Downgrade: []migrate.Op{
				migrate.DropColumn{Table: "tournaments", Column: "date"},
				migrate.DropColumn{Table: "tournaments", Column: "location"},
				migrate.DropColumn{Table: "tournaments", Column: "name"},
			},
		},
	}
}

// Chain validates Revisions. It fails only if the declarations above are
// broken.
func Chain() (*migrate.Chain, error) {
	return migrate.NewChain(Revisions()...)
}
