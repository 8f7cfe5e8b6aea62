// Package admin implements the operator commands of the migrate tool:
// inspecting and moving the schema revision, and creating accounts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/judoassistant/tournament-sync/internal/logging"
	"github.com/judoassistant/tournament-sync/internal/server/migrate"
	"github.com/judoassistant/tournament-sync/internal/server/services"
)

// ErrUsage is returned for unknown commands and missing arguments.
var ErrUsage = errors.New("usage: migrate [flags] current | history | upgrade | downgrade <revision|none> | add-user <email>")

type Engine interface {
	Chain() *migrate.Chain
	Current(ctx context.Context) (string, error)
	History(ctx context.Context) ([]migrate.RevisionStatus, error)
	UpgradeToHead(ctx context.Context) ([]string, error)
	DowngradeTo(ctx context.Context, target string) ([]string, error)
}

type Registrar interface {
	Register(ctx context.Context, email, password string) (*services.Session, error)
}

type App struct {
	engine Engine
	users  Registrar
	out    io.Writer
	logger logging.Logger
}

func NewApp(e Engine, us Registrar, out io.Writer, l logging.Logger) *App {
	return &App{engine: e, users: us, out: out, logger: l.With("module", "admin")}
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]

	switch cmd {
	case "current":
		return a.current(ctx)
	case "history":
		return a.history(ctx)
	case "upgrade":
		return a.upgrade(ctx)
	case "downgrade":
		if len(rest) != 1 {
			return ErrUsage
		}
		return a.downgrade(ctx, migrate.ParseRevision(rest[0]))
	case "add-user":
		if len(rest) != 1 {
			return ErrUsage
		}
		return a.addUser(ctx, rest[0])
	case "help":
		_, err := fmt.Fprintln(a.out, ErrUsage.Error())
		return err
	default:
		return fmt.Errorf("%w (unknown command %q)", ErrUsage, cmd)
	}
}

func (a *App) current(ctx context.Context) error {
	cur, err := a.engine.Current(ctx)
	if err != nil {
		return err
	}
	suffix := ""
	if cur == a.engine.Chain().Head() {
		suffix = " (head)"
	}
	_, err = fmt.Fprintf(a.out, "%s%s\n", migrate.Display(cur), suffix)
	return err
}

func (a *App) history(ctx context.Context) error {
	statuses, err := a.engine.History(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tREVISION\tPARENT\tAPPLIED\tDESCRIPTION")
	for _, s := range statuses {
		marker := ""
		if s.Current {
			marker = "*"
		}
		applied := "pending"
		if s.Applied {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			marker, s.Revision.ID, migrate.Display(s.Revision.DownRevision), applied, s.Revision.Description)
	}
	return tw.Flush()
}

func (a *App) upgrade(ctx context.Context) error {
	applied, err := a.engine.UpgradeToHead(ctx)
	for _, id := range applied {
		fmt.Fprintf(a.out, "upgraded to %s\n", id)
	}
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		_, err = fmt.Fprintln(a.out, "already at head")
	}
	return err
}

func (a *App) downgrade(ctx context.Context, target string) error {
	reverted, err := a.engine.DowngradeTo(ctx, target)
	for _, id := range reverted {
		fmt.Fprintf(a.out, "reverted %s\n", id)
	}
	if err != nil {
		return err
	}
	if len(reverted) == 0 {
		_, err = fmt.Fprintf(a.out, "already at %s\n", migrate.Display(target))
	}
	return err
}

func (a *App) addUser(ctx context.Context, email string) error {
	pw, err := getNewPassword(a.out)
	if err != nil {
		return err
	}
	defer clear(pw)

	session, err := a.users.Register(ctx, email, string(pw))
	if err != nil {
		return err
	}

	a.logger.Info(ctx, "user created", "user_id", session.UserID)
	_, err = fmt.Fprintf(a.out, "created user %d, token %s (valid until %s)\n",
		session.UserID, session.Token, session.Expiration.UTC().Format(time.RFC3339))
	return err
}
