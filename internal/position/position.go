// Package position computes where a newly inserted record lands among its
// siblings: a sort value for top/bottom placement, or a move instruction
// relative to an existing sibling.
package position

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cms-records/internal/storage"
)

// SortGap is the distance left between sibling sort values on bottom insert
// so later inserts can land between rows without resorting.
const SortGap = 128

// Kind selects the placement strategy.
type Kind int

const (
	// Bottom appends after the last sibling (the default).
	Bottom Kind = iota
	// Top leaves placement to the storage engine's insert-at-head default.
	Top
	// After places the record directly after a sibling, as a post-create move.
	After
	// Before places the record directly before a sibling, as a post-create move.
	Before
)

// Placement is a parsed position request.
type Placement struct {
	Kind     Kind
	TargetID int64
}

// Parse reads a caller-supplied position string:
// "", "bottom", "top", "after:<id>", "before:<id>".
func Parse(s string) (Placement, error) {
	switch {
	case s == "" || s == "bottom":
		return Placement{Kind: Bottom}, nil
	case s == "top":
		return Placement{Kind: Top}, nil
	case strings.HasPrefix(s, "after:"):
		return parseRelative(s, "after:", After)
	case strings.HasPrefix(s, "before:"):
		return parseRelative(s, "before:", Before)
	default:
		return Placement{}, fmt.Errorf("invalid position %q", s)
	}
}

func parseRelative(s, prefix string, kind Kind) (Placement, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, prefix), 10, 64)
	if err != nil || id <= 0 {
		return Placement{}, fmt.Errorf("invalid position %q: target id must be a positive integer", s)
	}
	return Placement{Kind: kind, TargetID: id}, nil
}

// IsMove reports whether the placement is executed as a post-create move
// instruction rather than a precomputed sort value.
func (p Placement) IsMove() bool {
	return p.Kind == After || p.Kind == Before
}

// MoveDirection translates the placement into the storage move direction.
// Only valid when IsMove is true.
func (p Placement) MoveDirection() storage.MoveDirection {
	if p.Kind == Before {
		return storage.MoveBefore
	}
	return storage.MoveAfter
}

// Calculator reads sibling sort values to place bottom inserts.
type Calculator struct {
	store storage.Store
}

// NewCalculator creates a calculator over the given store.
func NewCalculator(store storage.Store) *Calculator {
	return &Calculator{store: store}
}

// BottomSortValue returns the sort value for appending under a container:
// the current maximum among siblings plus SortGap. Reading then writing
// accepts occasional clashes under concurrent sibling inserts.
func (c *Calculator) BottomSortValue(ctx context.Context, table string, containerID int64) (int64, error) {
	max, err := c.store.MaxValue(ctx, table, storage.ColSort, storage.Filter{
		storage.ColContainer: containerID,
		storage.ColDeleted:   0,
	})
	if err != nil {
		return 0, err
	}
	return max + SortGap, nil
}
