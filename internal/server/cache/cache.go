// Package cache keeps the public tournament listing out of the database hot
// path. Writers that change listed fields invalidate it.
package cache

import (
	"context"

	"github.com/judoassistant/tournament-sync/internal/server/models"
)

type ListingCache interface {
	// Get returns the cached listing for day; ok is false on a miss.
	Get(ctx context.Context, day string) (l *models.Listing, ok bool, err error)
	Set(ctx context.Context, l *models.Listing) error
	Invalidate(ctx context.Context) error
}

// Nop never caches.
type Nop struct{}

func (Nop) Get(context.Context, string) (*models.Listing, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, *models.Listing) error                 { return nil }
func (Nop) Invalidate(context.Context) error                           { return nil }
