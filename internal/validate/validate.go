// Package validate checks proposed field values against a table's schema
// descriptor and coerces them into storable form.
package validate

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"cms-records/internal/schema"
	"cms-records/internal/setutil"
	"cms-records/internal/storage"
)

// FieldError reports a rejected field with the specific reason.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

func fieldErrorf(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validator validates and coerces field value sets.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate checks values against desc and returns a coerced copy. current is
// the stored row being updated (nil on create) and supplies the record type
// when the incoming values do not change it. Relation fields are passed
// through untouched; the relation synchronizer validates their structure.
func (v *Validator) Validate(desc *schema.Descriptor, current storage.Row, values map[string]any, isCreate bool) (map[string]any, error) {
	coerced := make(map[string]any, len(values))

	for name, value := range values {
		if name == storage.ColID {
			return nil, fieldErrorf(name, "identity fields cannot be written")
		}
		if name == storage.ColContainer && !isCreate {
			return nil, fieldErrorf(name, "container can only be set on create")
		}
		if name == storage.ColContainer {
			coerced[name] = value
			continue
		}
		if name == storage.ColLocale && desc.SupportsLocale {
			n, ok := toInt(value)
			if !ok {
				return nil, fieldErrorf(name, "expected a numeric locale id")
			}
			coerced[name] = n
			continue
		}

		field, declared := desc.Field(name)
		if !declared {
			return nil, fieldErrorf(name, "unknown field")
		}
		if field.ReadOnly {
			return nil, fieldErrorf(name, "field is read-only")
		}
		if field.Type == schema.TypeFile {
			return nil, fieldErrorf(name, "file fields are not supported by this API")
		}

		if _, isRelation := desc.RelationFor(name); isRelation {
			coerced[name] = value
			continue
		}

		out, err := coerceValue(name, field, value)
		if err != nil {
			return nil, err
		}
		coerced[name] = out
	}

	if err := checkAvailability(desc, current, coerced); err != nil {
		return nil, err
	}

	return coerced, nil
}

func coerceValue(name string, field schema.Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch field.Type {
	case schema.TypeString, schema.TypeText:
		s, ok := value.(string)
		if !ok {
			return nil, fieldErrorf(name, "expected a string")
		}
		if field.MaxLength > 0 && len(s) > field.MaxLength {
			return nil, fieldErrorf(name, "exceeds maximum length %d", field.MaxLength)
		}
		return s, nil

	case schema.TypeInt:
		n, ok := toInt(value)
		if !ok {
			return nil, fieldErrorf(name, "expected a numeric value")
		}
		return n, nil

	case schema.TypeFloat:
		switch f := value.(type) {
		case float64:
			return f, nil
		case int:
			return float64(f), nil
		case int64:
			return float64(f), nil
		case string:
			parsed, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fieldErrorf(name, "expected a numeric value")
			}
			return parsed, nil
		default:
			return nil, fieldErrorf(name, "expected a numeric value")
		}

	case schema.TypeBool:
		switch b := value.(type) {
		case bool:
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		case float64:
			if b == 0 || b == 1 {
				return int64(b), nil
			}
		case int64:
			if b == 0 || b == 1 {
				return b, nil
			}
		case int:
			if b == 0 || b == 1 {
				return int64(b), nil
			}
		}
		return nil, fieldErrorf(name, "expected a boolean")

	case schema.TypeEmail:
		s, ok := value.(string)
		if !ok {
			return nil, fieldErrorf(name, "expected an e-mail address")
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return nil, fieldErrorf(name, "invalid e-mail address")
		}
		return s, nil

	case schema.TypeDatetime:
		return coerceDatetime(name, value)

	case schema.TypeSelect:
		return coerceSelect(name, field, value)

	case schema.TypeGroup:
		csv, err := setutil.CanonicalizeAny(value, nil)
		if err != nil {
			return nil, fieldErrorf(name, "%s", err.Error())
		}
		return csv, nil

	case schema.TypePassthrough:
		return value, nil

	default:
		return nil, fieldErrorf(name, "unsupported field type %q", field.Type)
	}
}

// coerceDatetime accepts a raw epoch or an ISO-8601 string and stores epoch
// seconds either way.
func coerceDatetime(name string, value any) (any, error) {
	if n, ok := toInt(value); ok {
		return n, nil
	}
	s, ok := value.(string)
	if !ok {
		return nil, fieldErrorf(name, "expected an epoch integer or ISO-8601 string")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.Unix(), nil
		}
	}
	return nil, fieldErrorf(name, "invalid ISO-8601 datetime %q", s)
}

func coerceSelect(name string, field schema.Field, value any) (any, error) {
	if field.MultiValue {
		csv, err := setutil.CanonicalizeAny(value, field.AllowedValues)
		if err != nil {
			return nil, fieldErrorf(name, "%s", err.Error())
		}
		return csv, nil
	}

	s := stringValue(value)
	if s == "" {
		return nil, fieldErrorf(name, "expected a scalar value")
	}
	if len(field.AllowedValues) > 0 {
		for _, allowed := range field.AllowedValues {
			if allowed == s {
				return s, nil
			}
		}
		return nil, fieldErrorf(name, "value %q is not among the allowed values", s)
	}
	return s, nil
}

// checkAvailability re-validates field availability once the record subtype is
// known: fields outside the subtype's set are rejected unless free-form.
func checkAvailability(desc *schema.Descriptor, current storage.Row, values map[string]any) error {
	if desc.RecordTypeField == "" {
		return nil
	}

	recordType := ""
	if v, ok := values[desc.RecordTypeField]; ok {
		recordType = stringValue(v)
	} else if current != nil {
		recordType = current.String(desc.RecordTypeField)
	}

	available, restricted := desc.FieldsForType(recordType)
	if !restricted {
		return nil
	}

	for name := range values {
		if name == storage.ColContainer || name == storage.ColLocale || name == desc.RecordTypeField {
			continue
		}
		if field, ok := desc.Field(name); ok && field.Type == schema.TypePassthrough {
			continue
		}
		if _, ok := available[name]; !ok {
			return fieldErrorf(name, "not available for record type %q", recordType)
		}
	}
	return nil
}

func toInt(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func stringValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
