package schema

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// FileRegistry is a Registry loaded once from a YAML descriptor file.
// The file maps table name to descriptor:
//
//	content:
//	  supports_locale: true
//	  record_type_field: kind
//	  fields:
//	    header: {type: string, max_length: 255}
//	  relations:
//	    links:
//	      kind: embedded
//	      foreign_table: content_link
//	      foreign_key_field: content_id
//	      order_field: sorting
type FileRegistry struct {
	descriptors map[string]*Descriptor
}

// LoadFile reads and validates a descriptor file.
func LoadFile(path string) (*FileRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema descriptor file: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from raw YAML descriptor data.
func Parse(data []byte) (*FileRegistry, error) {
	raw := map[string]*Descriptor{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse schema descriptors: %w", err)
	}

	descriptors := make(map[string]*Descriptor, len(raw))
	for table, desc := range raw {
		if desc == nil {
			desc = &Descriptor{}
		}
		desc.Table = table
		if desc.Fields == nil {
			desc.Fields = map[string]Field{}
		}
		if desc.SupportsLocale && desc.TranslationParentField == "" {
			desc.TranslationParentField = "translation_parent_id"
		}
		if err := validateDescriptor(desc); err != nil {
			return nil, fmt.Errorf("schema descriptor for table %q: %w", table, err)
		}
		descriptors[table] = desc
	}

	return &FileRegistry{descriptors: descriptors}, nil
}

func validateDescriptor(desc *Descriptor) error {
	for name, f := range desc.Fields {
		switch f.Type {
		case TypeString, TypeText, TypeInt, TypeFloat, TypeBool, TypeEmail,
			TypeDatetime, TypeSelect, TypeGroup, TypePassthrough, TypeFile:
		case "":
			return fmt.Errorf("field %q has no type", name)
		default:
			return fmt.Errorf("field %q has unknown type %q", name, f.Type)
		}
	}
	for field, rel := range desc.Relations {
		if _, ok := desc.Fields[field]; !ok {
			return fmt.Errorf("relation %q has no matching field declaration", field)
		}
		switch rel.Kind {
		case RelationIndependent, RelationEmbedded:
		default:
			return fmt.Errorf("relation %q has unknown kind %q", field, rel.Kind)
		}
		if rel.ForeignTable == "" || rel.ForeignKeyField == "" {
			return fmt.Errorf("relation %q is missing foreign_table or foreign_key_field", field)
		}
	}
	if desc.RecordTypeField != "" {
		if _, ok := desc.Fields[desc.RecordTypeField]; !ok {
			return fmt.Errorf("record_type_field %q is not a declared field", desc.RecordTypeField)
		}
	}
	return nil
}

func (r *FileRegistry) Descriptor(table string) (*Descriptor, bool) {
	d, ok := r.descriptors[table]
	return d, ok
}

func (r *FileRegistry) IsAccessible(table string) bool {
	d, ok := r.descriptors[table]
	return ok && !d.Hidden
}

func (r *FileRegistry) Tables() []string {
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
