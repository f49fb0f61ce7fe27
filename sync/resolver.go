// ABOUTME: Resolves decoded identifiers to stored form records
// ABOUTME: Distinguishes a missing record from an unreachable store
package sync

import (
	"context"

	"github.com/harperreed/scanpush/models"
)

// RecordStore is the read side of the form store.
type RecordStore interface {
	// Get returns nil, nil when no record has the ID.
	Get(ctx context.Context, id string) (*models.FormRecord, error)
}

// Resolver performs exact-match lookups. It never writes.
type Resolver struct {
	store RecordStore
}

func NewResolver(store RecordStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the record for id, or an *Error of KindNotFound or
// KindStoreUnavailable.
func (r *Resolver) Resolve(ctx context.Context, id string) (*models.FormRecord, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, &Error{Kind: KindStoreUnavailable, Message: "failed to look up form record", Err: err}
	}
	if rec == nil {
		return nil, &Error{Kind: KindNotFound, Message: "no form data found for id " + id}
	}
	return rec, nil
}
