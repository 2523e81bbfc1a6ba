// Package storage is the write/read interface to the underlying relational
// content repository. The mutation engine never embeds SQL directly; it goes
// through Store, which the SQL implementation builds with squirrel.
package storage

import (
	"context"
	"errors"
	"strconv"
)

// Bookkeeping columns every versioned content table carries.
const (
	ColID                = "id"
	ColContainer         = "container_id"
	ColSort              = "sorting"
	ColDeleted           = "deleted"
	ColWorkspace         = "workspace_id"
	ColDraftOrigin       = "draft_origin_id"
	ColDraftState        = "draft_state"
	ColLocale            = "locale_id"
	ColTranslationParent = "translation_parent_id"
)

// DraftState marks how a row relates to the draft/published lifecycle.
type DraftState int64

const (
	// DraftStateNone marks a live row, or a draft copy of one.
	DraftStateNone DraftState = 0
	// DraftStateNewPlaceholder marks a record created inside a draft
	// environment with no live counterpart yet; its externally-visible id is
	// its own row id.
	DraftStateNewPlaceholder DraftState = 1
	// DraftStateModifiedCopy marks a draft row carrying edits of a live row.
	DraftStateModifiedCopy DraftState = 2
)

// ErrNotFound is returned when a filter matches no row.
var ErrNotFound = errors.New("record not found")

// Row is a single stored record keyed by column name.
type Row map[string]any

// Int reads a column as int64, tolerating the numeric and textual shapes the
// driver may hand back. Missing or non-numeric columns read as 0.
func (r Row) Int(column string) int64 {
	switch v := r[column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// String reads a column as a string. Missing columns read as "".
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// Filter is a conjunction of column equality conditions.
type Filter map[string]any

// MoveDirection positions a row relative to a sibling.
type MoveDirection int

const (
	MoveAfter MoveDirection = iota
	MoveBefore
)

// Store is the storage collaborator consumed by the mutation engine.
type Store interface {
	// Insert writes a new row and returns its id.
	Insert(ctx context.Context, table string, values map[string]any) (int64, error)
	// Update writes values onto an existing row.
	Update(ctx context.Context, table string, rowID int64, values map[string]any) error
	// Delete soft-deletes a row (sets the deleted flag; publish handles the
	// live counterpart).
	Delete(ctx context.Context, table string, rowID int64) error
	// SelectOne returns the first row matching the filter, or ErrNotFound.
	SelectOne(ctx context.Context, table string, filter Filter) (Row, error)
	// SelectMany returns all rows matching the filter.
	SelectMany(ctx context.Context, table string, filter Filter) ([]Row, error)
	// MaxValue returns the largest value of a numeric column among rows
	// matching the filter, 0 when none match.
	MaxValue(ctx context.Context, table, column string, filter Filter) (int64, error)
	// Move re-positions a row's sort value relative to a sibling.
	Move(ctx context.Context, table string, rowID, targetID int64, dir MoveDirection) error
	// DeriveTranslation copies a row into a new localized row linked to its
	// default-locale original via parentField, and returns the new row id.
	DeriveTranslation(ctx context.Context, table string, rowID, liveID, localeID int64, parentField string) (int64, error)
}
