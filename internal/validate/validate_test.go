package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-records/internal/schema"
	"cms-records/internal/storage"
)

func contentDescriptor() *schema.Descriptor {
	return &schema.Descriptor{
		Table:           "content",
		RecordTypeField: "kind",
		Fields: map[string]schema.Field{
			"kind":     {Type: schema.TypeString},
			"header":   {Type: schema.TypeString, MaxLength: 10},
			"body":     {Type: schema.TypeText},
			"rating":   {Type: schema.TypeInt},
			"visible":  {Type: schema.TypeBool},
			"contact":  {Type: schema.TypeEmail},
			"starts":   {Type: schema.TypeDatetime},
			"flags":    {Type: schema.TypeSelect, MultiValue: true, AllowedValues: []string{"a", "b", "c"}},
			"layout":   {Type: schema.TypeSelect, AllowedValues: []string{"plain", "boxed"}},
			"refs":     {Type: schema.TypeGroup},
			"raw":      {Type: schema.TypePassthrough},
			"locked":   {Type: schema.TypeString, ReadOnly: true},
			"download": {Type: schema.TypeFile},
			"links":    {Type: schema.TypeGroup},
		},
		FieldsByType: map[string][]string{
			"text": {"kind", "header", "body", "rating", "visible", "contact", "starts", "flags", "layout", "refs", "links"},
			"plug": {"kind", "header"},
		},
		Relations: map[string]schema.Relation{
			"links": {Kind: schema.RelationEmbedded, ForeignTable: "content_link", ForeignKeyField: "content_id"},
		},
	}
}

func validateOne(t *testing.T, values map[string]any) (map[string]any, error) {
	t.Helper()
	values["kind"] = "text"
	return New().Validate(contentDescriptor(), nil, values, true)
}

func TestValidate_RejectsIdentityAndContainerWrites(t *testing.T) {
	v := New()
	desc := contentDescriptor()

	_, err := v.Validate(desc, nil, map[string]any{"id": 5}, true)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "id", fe.Field)

	_, err = v.Validate(desc, nil, map[string]any{"container_id": 10}, false)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "container_id", fe.Field)

	// On create the container is legal (it travels in the value set).
	out, err := v.Validate(desc, nil, map[string]any{"container_id": 10, "kind": "text"}, true)
	require.NoError(t, err)
	assert.Equal(t, 10, out["container_id"])
}

func TestValidate_UnknownReadOnlyAndFileFields(t *testing.T) {
	var fe *FieldError

	_, err := validateOne(t, map[string]any{"bogus": 1})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "bogus", fe.Field)
	assert.Contains(t, fe.Reason, "unknown")

	_, err = validateOne(t, map[string]any{"locked": "x"})
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Reason, "read-only")

	_, err = validateOne(t, map[string]any{"download": "f.pdf"})
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Reason, "file fields")
}

func TestValidate_StringLength(t *testing.T) {
	out, err := validateOne(t, map[string]any{"header": "short"})
	require.NoError(t, err)
	assert.Equal(t, "short", out["header"])

	_, err = validateOne(t, map[string]any{"header": "far too long for this"})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Reason, "maximum length")
}

func TestValidate_NumericCoercion(t *testing.T) {
	out, err := validateOne(t, map[string]any{"rating": float64(4)})
	require.NoError(t, err)
	assert.Equal(t, int64(4), out["rating"])

	out, err = validateOne(t, map[string]any{"rating": "12"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), out["rating"])

	_, err = validateOne(t, map[string]any{"rating": "12.5.x"})
	assert.Error(t, err)
}

func TestValidate_BoolCoercion(t *testing.T) {
	out, err := validateOne(t, map[string]any{"visible": true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out["visible"])

	_, err = validateOne(t, map[string]any{"visible": 3})
	assert.Error(t, err)
}

func TestValidate_Email(t *testing.T) {
	_, err := validateOne(t, map[string]any{"contact": "editor@example.com"})
	require.NoError(t, err)

	_, err = validateOne(t, map[string]any{"contact": "not-an-address"})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Reason, "e-mail")
}

func TestValidate_DatetimeCoercion(t *testing.T) {
	out, err := validateOne(t, map[string]any{"starts": float64(1700000000)})
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), out["starts"])

	out, err = validateOne(t, map[string]any{"starts": "2023-11-14T22:13:20Z"})
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), out["starts"], "ISO-8601 strings coerce to epoch")

	out, err = validateOne(t, map[string]any{"starts": "2023-11-14"})
	require.NoError(t, err)
	assert.Equal(t, int64(1699920000), out["starts"])

	_, err = validateOne(t, map[string]any{"starts": "next tuesday"})
	assert.Error(t, err)
}

func TestValidate_SelectMembership(t *testing.T) {
	out, err := validateOne(t, map[string]any{"layout": "boxed"})
	require.NoError(t, err)
	assert.Equal(t, "boxed", out["layout"])

	_, err = validateOne(t, map[string]any{"layout": "fancy"})
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Reason, "allowed values")
}

func TestValidate_MultiValueNormalization(t *testing.T) {
	out, err := validateOne(t, map[string]any{"flags": []any{"c", "a", "c"}})
	require.NoError(t, err)
	assert.Equal(t, "a,c", out["flags"])

	out, err = validateOne(t, map[string]any{"refs": []any{float64(7), float64(3)}})
	require.NoError(t, err)
	assert.Equal(t, "7,3", out["refs"])
}

func TestValidate_RelationValuesPassThrough(t *testing.T) {
	links := []any{map[string]any{"url": "https://example.com"}}
	out, err := validateOne(t, map[string]any{"links": links})
	require.NoError(t, err)
	assert.Equal(t, links, out["links"], "relation fields are structurally validated by the synchronizer")
}

func TestValidate_AvailabilityByRecordType(t *testing.T) {
	v := New()
	desc := contentDescriptor()

	_, err := v.Validate(desc, nil, map[string]any{"kind": "plug", "body": "text"}, true)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "body", fe.Field)
	assert.Contains(t, fe.Reason, "not available")

	// Record type from the stored row when the update does not change it.
	current := storage.Row{"kind": "plug"}
	_, err = v.Validate(desc, current, map[string]any{"body": "text"}, false)
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "body", fe.Field)

	// Passthrough fields are exempt from availability.
	_, err = v.Validate(desc, nil, map[string]any{"kind": "plug", "raw": "anything"}, true)
	assert.NoError(t, err)

	// Unknown subtype does not restrict.
	_, err = v.Validate(desc, nil, map[string]any{"kind": "exotic", "body": "text"}, true)
	assert.NoError(t, err)
}
