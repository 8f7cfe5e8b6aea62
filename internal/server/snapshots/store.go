// Package snapshots keeps uploaded tournament snapshots outside the database.
// The database records when the current snapshot was taken; the snapshot
// itself is found by tournament row and that time.
package snapshots

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Ref names the tournament row a snapshot belongs to. Row ids are never
// reused, so a web name registered again starts without snapshots.
type Ref struct {
	WebName string
	ID      int64
}

// Store persists opaque tournament snapshots.
type Store interface {
	// Put stores data as the snapshot of ref taken at at and returns its key.
	Put(ctx context.Context, ref Ref, at time.Time, data []byte) (string, error)
	// Get returns the snapshot of ref taken at at, or common.ErrorNotFound.
	Get(ctx context.Context, ref Ref, at time.Time) ([]byte, error)
	// Prune deletes every snapshot of ref except the one stored under keep.
	// An empty keep deletes them all.
	Prune(ctx context.Context, ref Ref, keep string) error
}

const keyTimeLayout = "20060102T150405.000000000Z"

func prefix(ref Ref) string {
	return "tournaments/" + ref.WebName + "/" + strconv.FormatInt(ref.ID, 10) + "/"
}

// StorageKey builds the key of the snapshot of ref taken at at. Keys of one
// row sort by snapshot time.
func StorageKey(ref Ref, at time.Time) string {
	return fmt.Sprintf("%s%s", prefix(ref), at.UTC().Format(keyTimeLayout))
}
