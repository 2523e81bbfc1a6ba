// Package workspace maps between the two id spaces of a versioned record:
// the stable live id callers address, and the draft row id edits land on
// inside a draft environment. Both mappings are total; when a lookup fails
// they default to identity so a missing draft environment never faults a
// mutation.
package workspace

import (
	"context"

	"cms-records/internal/storage"
)

// LiveWorkspaceID is the published environment; both mappings are the
// identity there.
const LiveWorkspaceID = 0

// Resolver maps live ids to draft row ids and back for one store.
type Resolver struct {
	store storage.Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// ToDraftID returns the draft row id carrying edits of liveID inside the
// given workspace. When no draft row exists yet the live id is returned; the
// subsequent write creates the draft copy downstream.
func (r *Resolver) ToDraftID(ctx context.Context, table string, liveID, workspaceID int64) int64 {
	if workspaceID == LiveWorkspaceID || liveID <= 0 {
		return liveID
	}

	row, err := r.store.SelectOne(ctx, table, storage.Filter{
		storage.ColDraftOrigin: liveID,
		storage.ColWorkspace:   workspaceID,
	})
	if err != nil {
		return liveID
	}
	if id := row.Int(storage.ColID); id > 0 {
		return id
	}
	return liveID
}

// ToLiveID returns the stable live id for a row id. Draft copies resolve to
// their origin; new placeholders have no live counterpart yet and resolve to
// themselves.
func (r *Resolver) ToLiveID(ctx context.Context, table string, rowID int64) int64 {
	if rowID <= 0 {
		return rowID
	}

	row, err := r.store.SelectOne(ctx, table, storage.Filter{storage.ColID: rowID})
	if err != nil {
		return rowID
	}
	if origin := row.Int(storage.ColDraftOrigin); origin > 0 {
		return origin
	}
	return rowID
}
