// Package schema is the read-only access layer over the content repository's
// table descriptors: which tables exist, which fields they carry, how fields
// are validated, and how relation fields are configured.
package schema

// FieldType enumerates the value types a field descriptor can declare.
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeText        FieldType = "text"
	TypeInt         FieldType = "int"
	TypeFloat       FieldType = "float"
	TypeBool        FieldType = "bool"
	TypeEmail       FieldType = "email"
	TypeDatetime    FieldType = "datetime"
	TypeSelect      FieldType = "select"
	TypeGroup       FieldType = "group"
	TypePassthrough FieldType = "passthrough"
	TypeFile        FieldType = "file"
)

// RelationKind distinguishes the two ownership semantics a relation field can have.
// Exactly one applies per relation field.
type RelationKind string

const (
	// RelationIndependent links children that have their own identity; mutation
	// only sets or clears the foreign key on the child.
	RelationIndependent RelationKind = "independent"
	// RelationEmbedded owns its children outright; an update replaces the full
	// child set and absent children are deleted.
	RelationEmbedded RelationKind = "embedded"
)

// Field describes a single field's type and validation rules.
type Field struct {
	Type          FieldType `yaml:"type"`
	MaxLength     int       `yaml:"max_length"`
	Required      bool      `yaml:"required"`
	MultiValue    bool      `yaml:"multi_value"`
	AllowedValues []string  `yaml:"allowed_values"`
	// AuthGroup names a field-value authorization group; when set, the acting
	// principal must be allowed to write each proposed value.
	AuthGroup string `yaml:"auth_group"`
	ReadOnly  bool   `yaml:"read_only"`
}

// Relation describes a relation field's configuration.
type Relation struct {
	Kind            RelationKind `yaml:"kind"`
	ForeignTable    string       `yaml:"foreign_table"`
	ForeignKeyField string       `yaml:"foreign_key_field"`
	OrderField      string       `yaml:"order_field"`
}

// Descriptor is the per-table schema descriptor.
type Descriptor struct {
	Table  string           `yaml:"-"`
	Fields map[string]Field `yaml:"fields"`
	// RecordTypeField names the field whose value selects a record's subtype,
	// empty when the table has a single shape.
	RecordTypeField string              `yaml:"record_type_field"`
	FieldsByType    map[string][]string `yaml:"fields_by_type"`
	Relations       map[string]Relation `yaml:"relations"`
	ReadOnly        bool                `yaml:"read_only"`
	Hidden          bool                `yaml:"hidden"`
	SupportsLocale  bool                `yaml:"supports_locale"`
	// TranslationParentField names the column linking a translation to its
	// default-locale original. Defaults to translation_parent_id when the
	// table supports locales.
	TranslationParentField string `yaml:"translation_parent_field"`
}

// Field returns the descriptor for a named field, when declared.
func (d *Descriptor) Field(name string) (Field, bool) {
	f, ok := d.Fields[name]
	return f, ok
}

// RelationFor returns the relation configuration for a field, when the field
// is a relation field.
func (d *Descriptor) RelationFor(field string) (Relation, bool) {
	r, ok := d.Relations[field]
	return r, ok
}

// FieldsForType returns the applicable field set for a record subtype.
// The second result is false when the table does not restrict fields by type
// or the subtype is unknown, in which case all declared fields apply.
func (d *Descriptor) FieldsForType(recordType string) (map[string]struct{}, bool) {
	if d.RecordTypeField == "" || len(d.FieldsByType) == 0 {
		return nil, false
	}
	names, ok := d.FieldsByType[recordType]
	if !ok {
		return nil, false
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, true
}

// Registry answers descriptor lookups for the mutation engine.
type Registry interface {
	// Descriptor returns the descriptor for a table. The boolean is false for
	// unknown tables.
	Descriptor(table string) (*Descriptor, bool)
	// IsAccessible reports whether a table may be addressed by external callers.
	IsAccessible(table string) bool
	// Tables lists all registered table names.
	Tables() []string
}
