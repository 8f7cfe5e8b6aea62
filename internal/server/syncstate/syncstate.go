// Package syncstate models the (synced, save_time) pair of a tournament.
//
// A tournament is Unsynced after any change made by a client and Synced once
// the server has stored a snapshot and recorded when it was taken. Syncing
// exists only on the client while an upload is in flight and is never
// persisted. Writers change the pair only through a Write, and only in the
// two shapes produced by MarkModified and Confirm.
package syncstate

import (
	"fmt"
	"time"

	"github.com/judoassistant/tournament-sync/internal/common"
)

type State int

const (
	Unsynced State = iota
	Syncing
	Synced
)

func (s State) String() string {
	switch s {
	case Unsynced:
		return "unsynced"
	case Syncing:
		return "syncing"
	case Synced:
		return "synced"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Write is a change of the sync pair. A nil SaveTime leaves the stored
// save_time untouched.
type Write struct {
	Synced   bool
	SaveTime *time.Time
}

// MarkModified is the write every mutation of a tournament must carry.
// The last save_time is kept so clients can tell how stale the copy is.
func MarkModified() Write {
	return Write{}
}

// Confirm records a snapshot taken at at.
func Confirm(at time.Time) Write {
	at = at.UTC()
	return Write{Synced: true, SaveTime: &at}
}

// Validate rejects writes that would set synced without a save_time or a
// save_time without synced.
func (w Write) Validate() error {
	return Validate(w.Synced, w.SaveTime)
}

// Validate checks a (synced, save_time) pair about to be written.
func Validate(synced bool, saveTime *time.Time) error {
	switch {
	case synced && saveTime == nil:
		return fmt.Errorf("%w: synced without save_time", common.ErrInvalidSyncState)
	case !synced && saveTime != nil:
		return fmt.Errorf("%w: save_time without synced", common.ErrInvalidSyncState)
	}
	return nil
}

// Of derives the state of a stored row. A row claiming synced without a
// save_time is reported as ErrInvalidSyncState.
func Of(synced bool, saveTime *time.Time) (State, error) {
	if !synced {
		return Unsynced, nil
	}
	if saveTime == nil {
		return Unsynced, fmt.Errorf("%w: synced without save_time", common.ErrInvalidSyncState)
	}
	return Synced, nil
}
