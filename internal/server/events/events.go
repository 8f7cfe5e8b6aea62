// Package events announces sync state changes of tournaments to live viewers.
package events

import (
	"context"
	"time"
)

const (
	TypeSynced   = "tournament.synced"
	TypeModified = "tournament.modified"
)

// Event is published after the change it describes has been committed.
type Event struct {
	Type         string     `json:"type"`
	WebName      string     `json:"web_name"`
	TournamentID int64      `json:"tournament_id"`
	SaveTime     *time.Time `json:"save_time,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
