package mutation

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"cms-records/internal/storage"
	"cms-records/internal/validate"
)

// Kind classifies a mutation failure for the caller.
type Kind string

const (
	// KindValidation covers bad or missing input, unknown tables or fields,
	// and schema mismatches. Never retried.
	KindValidation Kind = "validation"
	// KindAccessDenied covers container permission and field-value
	// authorization refusals.
	KindAccessDenied Kind = "access_denied"
	// KindNotFound covers record ids that resolve to no existing row.
	KindNotFound Kind = "not_found"
	// KindConflict covers translate requests that collide with existing
	// translations or source records that are themselves translations.
	KindConflict Kind = "conflict"
	// KindStorage covers writes the underlying storage rejected.
	KindStorage Kind = "storage"
)

// Error is the typed failure a mutation surfaces.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func fieldError(kind Kind, field, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Fields: []string{field}}
}

// AsError extracts the typed mutation error, wrapping unclassified errors as
// storage failures so callers always see the taxonomy.
func AsError(err error) *Error {
	var me *Error
	if errors.As(err, &me) {
		return me
	}
	var fe *validate.FieldError
	if errors.As(err, &fe) {
		return &Error{Kind: KindValidation, Message: fe.Error(), Fields: []string{fe.Field}}
	}
	return &Error{Kind: KindStorage, Message: err.Error()}
}

// MySQL error numbers the engine rephrases into user-legible failures.
const (
	mysqlErrDBAccessDenied     = 1044
	mysqlErrTableAccessDenied  = 1142
	mysqlErrColumnAccessDenied = 1143
	mysqlErrDuplicateEntry     = 1062
	mysqlErrRowIsReferenced    = 1451
	mysqlErrNoReferencedRow    = 1452
	mysqlErrColumnNoDefault    = 1364
	mysqlErrColumnNotNull      = 1048
)

// normalizeStorageError reformats known recurring storage failures into the
// taxonomy with actionable phrasing instead of raw driver text.
func normalizeStorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: "record not found"}
	}

	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return &Error{Kind: KindStorage, Message: err.Error()}
	}

	switch mysqlErr.Number {
	case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
		return &Error{Kind: KindAccessDenied, Message: "storage denied the write; the acting account lacks the required table permission"}
	case mysqlErrDuplicateEntry:
		return &Error{Kind: KindConflict, Message: "a record with the same unique value already exists"}
	case mysqlErrRowIsReferenced, mysqlErrNoReferencedRow:
		return &Error{Kind: KindStorage, Message: "the write violates a record reference constraint"}
	case mysqlErrColumnNoDefault, mysqlErrColumnNotNull:
		return &Error{Kind: KindStorage, Message: "a required field is missing a value"}
	default:
		return &Error{Kind: KindStorage, Message: mysqlErr.Message}
	}
}
