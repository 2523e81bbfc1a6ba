package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-records/internal/schema"
	"cms-records/internal/storage"
)

var embeddedLinks = schema.Relation{
	Kind:            schema.RelationEmbedded,
	ForeignTable:    "content_link",
	ForeignKeyField: "content_id",
	OrderField:      storage.ColSort,
}

var independentTags = schema.Relation{
	Kind:            schema.RelationIndependent,
	ForeignTable:    "tag",
	ForeignKeyField: "content_id",
}

func TestExtract(t *testing.T) {
	desc := &schema.Descriptor{
		Table: "content",
		Fields: map[string]schema.Field{
			"header": {Type: schema.TypeString},
			"links":  {Type: schema.TypeGroup},
		},
		Relations: map[string]schema.Relation{"links": embeddedLinks},
	}

	scalars, requests := Extract(desc, map[string]any{
		"header": "Hi",
		"links":  []any{map[string]any{"url": "a"}},
	})

	assert.Equal(t, map[string]any{"header": "Hi"}, scalars)
	require.Len(t, requests, 1)
	assert.Equal(t, "links", requests[0].Field)
	assert.Equal(t, embeddedLinks, requests[0].Config)
}

func TestValidateRequests(t *testing.T) {
	ok := []Request{
		{Field: "links", Config: embeddedLinks, Values: []any{map[string]any{"url": "a"}}},
		{Field: "tags", Config: independentTags, Values: []any{float64(3), float64(9)}},
	}
	assert.NoError(t, ValidateRequests(ok))

	bad := []struct {
		name string
		req  Request
	}{
		{"not an array", Request{Field: "links", Config: embeddedLinks, Values: "x"}},
		{"embedded scalar element", Request{Field: "links", Config: embeddedLinks, Values: []any{float64(1)}}},
		{"independent map element", Request{Field: "tags", Config: independentTags, Values: []any{map[string]any{}}}},
		{"independent non-positive id", Request{Field: "tags", Config: independentTags, Values: []any{float64(0)}}},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, ValidateRequests([]Request{tc.req}))
		})
	}
}

func TestSyncEmbedded_Create(t *testing.T) {
	store := storage.NewMemStore()
	syncer := NewSyncer(store)
	ctx := context.Background()

	req := Request{Field: "links", Config: embeddedLinks, Values: []any{
		map[string]any{"url": "a"},
		map[string]any{"url": "b"},
	}}
	require.NoError(t, syncer.Sync(ctx, 42, 10, 0, []Request{req}, false))

	children, err := store.SelectMany(ctx, "content_link", storage.Filter{"content_id": int64(42)})
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].String("url"))
	assert.Equal(t, int64(1*ChildOrderStep), children[0].Int(storage.ColSort))
	assert.Equal(t, int64(2*ChildOrderStep), children[1].Int(storage.ColSort))
	assert.Equal(t, int64(10), children[0].Int(storage.ColContainer), "children inherit the parent container")
}

func TestSyncEmbedded_ReplaceSemantics(t *testing.T) {
	store := storage.NewMemStore()
	syncer := NewSyncer(store)
	ctx := context.Background()

	// Existing children A(1), B(2), C(3).
	store.Seed("content_link", 1, storage.Row{"content_id": int64(42), "url": "a"})
	store.Seed("content_link", 2, storage.Row{"content_id": int64(42), "url": "b"})
	store.Seed("content_link", 3, storage.Row{"content_id": int64(42), "url": "c"})

	// Update keeps B (by id) and adds D (no id).
	req := Request{Field: "links", Config: embeddedLinks, Values: []any{
		map[string]any{"id": float64(2), "url": "b2"},
		map[string]any{"url": "d"},
	}}
	require.NoError(t, syncer.Sync(ctx, 42, 10, 0, []Request{req}, true))

	remaining, err := store.SelectMany(ctx, "content_link", storage.Filter{
		"content_id":       int64(42),
		storage.ColDeleted: 0,
	})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "b2", remaining[0].String("url"), "kept child is updated in place")
	assert.Equal(t, int64(2), remaining[0].Int(storage.ColID))
	assert.Equal(t, "d", remaining[1].String("url"))

	a, _ := store.Get("content_link", 1)
	c, _ := store.Get("content_link", 3)
	assert.Equal(t, int64(1), a.Int(storage.ColDeleted), "absent children are deleted")
	assert.Equal(t, int64(1), c.Int(storage.ColDeleted))
}

func TestSyncEmbedded_WorkspaceChildrenAreDrafts(t *testing.T) {
	store := storage.NewMemStore()
	syncer := NewSyncer(store)
	ctx := context.Background()

	req := Request{Field: "links", Config: embeddedLinks, Values: []any{
		map[string]any{"url": "a"},
	}}
	require.NoError(t, syncer.Sync(ctx, 42, 10, 3, []Request{req}, false))

	children, err := store.SelectMany(ctx, "content_link", storage.Filter{"content_id": int64(42)})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, int64(3), children[0].Int(storage.ColWorkspace))
	assert.Equal(t, int64(storage.DraftStateNewPlaceholder), children[0].Int(storage.ColDraftState))
}

func TestSyncIndependent_Idempotent(t *testing.T) {
	store := storage.NewMemStore()
	syncer := NewSyncer(store)
	ctx := context.Background()

	store.Seed("tag", 1, storage.Row{"content_id": int64(0)})
	store.Seed("tag", 2, storage.Row{"content_id": int64(0)})
	store.Seed("tag", 3, storage.Row{"content_id": int64(99)})

	req := Request{Field: "tags", Config: independentTags, Values: []any{float64(1), float64(2)}}
	require.NoError(t, syncer.Sync(ctx, 42, 10, 0, []Request{req}, true))
	// Same list again: same linked set, nothing unlinked or duplicated.
	require.NoError(t, syncer.Sync(ctx, 42, 10, 0, []Request{req}, true))

	linked, err := store.SelectMany(ctx, "tag", storage.Filter{"content_id": int64(42)})
	require.NoError(t, err)
	assert.Len(t, linked, 2)

	unrelated, _ := store.Get("tag", 3)
	assert.Equal(t, int64(99), unrelated.Int("content_id"), "children of other parents are untouched")
}

func TestSyncIndependent_UnlinksRemoved(t *testing.T) {
	store := storage.NewMemStore()
	syncer := NewSyncer(store)
	ctx := context.Background()

	store.Seed("tag", 1, storage.Row{"content_id": int64(42)})
	store.Seed("tag", 2, storage.Row{"content_id": int64(42)})

	req := Request{Field: "tags", Config: independentTags, Values: []any{float64(2)}}
	require.NoError(t, syncer.Sync(ctx, 42, 10, 0, []Request{req}, true))

	one, _ := store.Get("tag", 1)
	two, _ := store.Get("tag", 2)
	assert.Equal(t, int64(0), one.Int("content_id"), "removed child is unlinked, not deleted")
	assert.Equal(t, int64(0), one.Int(storage.ColDeleted))
	assert.Equal(t, int64(42), two.Int("content_id"))
}
