// Package models defines server-side data models persisted in the database.
package models

import "time"

// Tournament is the server-side record of a tournament published under a
// globally unique web name.
type Tournament struct {
	ID int64
	// Owner is the id of the user that registered the web name.
	Owner int64
	// TournamentID is the client-assigned tournament identifier. It is not
	// unique: a web name may be rebound to another tournament of the same owner.
	TournamentID int64
	WebName      string

	// Synced and SaveTime are the sync pair. Synced implies SaveTime is set.
	Synced   bool
	SaveTime *time.Time

	Name     *string
	Location *string
	Date     *time.Time
}

// TournamentMetadata holds the descriptive fields a client may update at any
// time. Nil fields are stored as NULL.
type TournamentMetadata struct {
	Name     *string
	Location *string
	Date     *time.Time
}

// Listing is the public overview of tournaments around Day (YYYY-MM-DD).
type Listing struct {
	Day      string
	Upcoming []*Tournament
	Past     []*Tournament
}
