// Package relation synchronizes child record sets for the two relation kinds.
// Independent children are linked and unlinked by foreign key only; embedded
// children are owned outright and replaced wholesale on update.
package relation

import (
	"context"
	"fmt"
	"log/slog"

	"cms-records/internal/logging"
	"cms-records/internal/schema"
	"cms-records/internal/storage"
)

// ChildOrderStep spaces embedded children's order values so later edits can
// insert between siblings.
const ChildOrderStep = 16

// Request is one relation field to synchronize.
type Request struct {
	Field  string
	Config schema.Relation
	Values any
}

// Extract splits a flat validated value set into scalar values and relation
// sync requests, keyed off the descriptor's relation configs.
func Extract(desc *schema.Descriptor, values map[string]any) (map[string]any, []Request) {
	scalars := make(map[string]any, len(values))
	var requests []Request
	for name, value := range values {
		if rel, ok := desc.RelationFor(name); ok {
			requests = append(requests, Request{Field: name, Config: rel, Values: value})
			continue
		}
		scalars[name] = value
	}
	return scalars, requests
}

// ValidateRequests checks relation value structure before any write happens:
// every relation value must be an array; embedded elements must be field-value
// maps, independent elements positive integer ids.
func ValidateRequests(requests []Request) error {
	for _, req := range requests {
		items, ok := req.Values.([]any)
		if !ok {
			return fmt.Errorf("relation field %q: value must be an array", req.Field)
		}
		for _, item := range items {
			switch req.Config.Kind {
			case schema.RelationEmbedded:
				if _, ok := item.(map[string]any); !ok {
					return fmt.Errorf("relation field %q: embedded children must be field-value maps", req.Field)
				}
			case schema.RelationIndependent:
				if id, ok := childID(item); !ok || id <= 0 {
					return fmt.Errorf("relation field %q: independent children must be positive record ids", req.Field)
				}
			}
		}
	}
	return nil
}

func childID(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// Syncer applies relation sync requests against the store.
type Syncer struct {
	store storage.Store
}

// NewSyncer creates a syncer over the given store.
func NewSyncer(store storage.Store) *Syncer {
	return &Syncer{store: store}
}

// Sync applies all requests for one parent. parentLiveID is the parent's
// stable live id; child foreign keys always reference it, never the parent's
// draft row id. Children created here inherit the parent's container and
// workspace.
func (s *Syncer) Sync(ctx context.Context, parentLiveID, parentContainerID, workspaceID int64, requests []Request, isUpdate bool) error {
	for _, req := range requests {
		items, ok := req.Values.([]any)
		if !ok {
			return fmt.Errorf("relation field %q: value must be an array", req.Field)
		}

		var err error
		switch req.Config.Kind {
		case schema.RelationEmbedded:
			err = s.syncEmbedded(ctx, req, parentLiveID, parentContainerID, workspaceID, items, isUpdate)
		case schema.RelationIndependent:
			err = s.syncIndependent(ctx, req, parentLiveID, items, isUpdate)
		default:
			err = fmt.Errorf("unknown relation kind %q", req.Config.Kind)
		}
		if err != nil {
			return fmt.Errorf("relation field %q: %w", req.Field, err)
		}
	}
	return nil
}

// syncIndependent relinks autonomous children: existing links are cleared,
// never deleted, then the requested set is pointed at the parent.
func (s *Syncer) syncIndependent(ctx context.Context, req Request, parentLiveID int64, items []any, isUpdate bool) error {
	fk := req.Config.ForeignKeyField

	requested := make(map[int64]struct{}, len(items))
	for _, item := range items {
		id, ok := childID(item)
		if !ok || id <= 0 {
			return fmt.Errorf("independent children must be positive record ids")
		}
		requested[id] = struct{}{}
	}

	if isUpdate {
		existing, err := s.store.SelectMany(ctx, req.Config.ForeignTable, storage.Filter{
			fk:                 parentLiveID,
			storage.ColDeleted: 0,
		})
		if err != nil {
			return err
		}
		for _, child := range existing {
			id := child.Int(storage.ColID)
			if _, keep := requested[id]; keep {
				continue
			}
			if err := s.store.Update(ctx, req.Config.ForeignTable, id, map[string]any{fk: 0}); err != nil {
				return err
			}
		}
	}

	for _, item := range items {
		id, _ := childID(item)
		if err := s.store.Update(ctx, req.Config.ForeignTable, id, map[string]any{fk: parentLiveID}); err != nil {
			return err
		}
	}
	return nil
}

// syncEmbedded replaces the owned child set: children carrying an id that is
// still present are kept and updated, absent existing children are deleted,
// and id-less entries become new children. New children are created with the
// foreign key unset and patched after creation so the row never references an
// id that does not exist yet.
func (s *Syncer) syncEmbedded(ctx context.Context, req Request, parentLiveID, parentContainerID, workspaceID int64, items []any, isUpdate bool) error {
	fk := req.Config.ForeignKeyField

	keep := make(map[int64]struct{}, len(items))
	for _, item := range items {
		child, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("embedded children must be field-value maps")
		}
		if id, ok := childID(child["id"]); ok && id > 0 {
			keep[id] = struct{}{}
		}
	}

	if isUpdate {
		existing, err := s.store.SelectMany(ctx, req.Config.ForeignTable, storage.Filter{
			fk:                 parentLiveID,
			storage.ColDeleted: 0,
		})
		if err != nil {
			return err
		}
		for _, child := range existing {
			id := child.Int(storage.ColID)
			if _, keepChild := keep[id]; keepChild {
				continue
			}
			if err := s.store.Delete(ctx, req.Config.ForeignTable, id); err != nil {
				return err
			}
		}
	}

	for index, item := range items {
		child := item.(map[string]any)

		values := make(map[string]any, len(child)+4)
		for k, v := range child {
			if k == "id" {
				continue
			}
			values[k] = v
		}
		if req.Config.OrderField != "" {
			values[req.Config.OrderField] = int64(index+1) * ChildOrderStep
		}

		if id, ok := childID(child["id"]); ok && id > 0 {
			values[fk] = parentLiveID
			if err := s.store.Update(ctx, req.Config.ForeignTable, id, values); err != nil {
				return err
			}
			continue
		}

		values[storage.ColContainer] = parentContainerID
		values[fk] = 0
		if workspaceID != 0 {
			values[storage.ColWorkspace] = workspaceID
			values[storage.ColDraftState] = int64(storage.DraftStateNewPlaceholder)
		}
		newID, err := s.store.Insert(ctx, req.Config.ForeignTable, values)
		if err != nil {
			return err
		}
		if err := s.store.Update(ctx, req.Config.ForeignTable, newID, map[string]any{fk: parentLiveID}); err != nil {
			return err
		}
		logging.FromContext(ctx).Debug("embedded child created",
			slog.String("table", req.Config.ForeignTable),
			slog.Int64("child_id", newID),
			slog.Int64("parent_id", parentLiveID),
		)
	}
	return nil
}
