package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cms-records/internal/mutation"
	"cms-records/internal/principal"
	"cms-records/internal/schema"
	"cms-records/internal/storage"
)

const handlerSchema = `
content:
  fields:
    header:
      type: string
      max_length: 255
`

func newTestHandler(t *testing.T) (*RecordsHandler, *storage.MemStore) {
	t.Helper()
	reg, err := schema.Parse([]byte(handlerSchema))
	require.NoError(t, err)
	store := storage.NewMemStore()
	return NewRecordsHandler(mutation.NewEngine(reg, store, nil)), store
}

func doRequest(t *testing.T, handler *RecordsHandler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/records", bytes.NewReader(raw))
	req = req.WithContext(principal.WithPrincipal(req.Context(), &principal.Claims{
		Subject: "tester", AllContainers: true,
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateRoundTrip(t *testing.T) {
	handler, store := newTestHandler(t)

	rec := doRequest(t, handler, MutationRequest{
		Action:      "create",
		Table:       "content",
		ContainerID: 10,
		FieldValues: map[string]any{"header": "Hi"},
		Position:    "bottom",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var res MutationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "create", res.Action)
	assert.Equal(t, "content", res.Table)
	assert.Empty(t, res.Warning)

	row, ok := store.Get("content", res.ID)
	require.True(t, ok)
	assert.Equal(t, "Hi", row.String("header"))
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	handler, _ := newTestHandler(t)

	tests := []struct {
		name       string
		body       MutationRequest
		wantStatus int
		wantKind   string
	}{
		{
			name:       "unknown table",
			body:       MutationRequest{Action: "create", Table: "nope", FieldValues: map[string]any{"a": 1}},
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
		},
		{
			name:       "missing record",
			body:       MutationRequest{Action: "delete", Table: "content", RecordID: 404},
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name:       "missing field values",
			body:       MutationRequest{Action: "create", Table: "content", ContainerID: 10},
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, handler, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)

			var res errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.wantKind, res.Error.Kind)
			assert.NotEmpty(t, res.Error.Message)
		})
	}
}

func TestValidationErrorNamesField(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, MutationRequest{
		Action:      "create",
		Table:       "content",
		ContainerID: 10,
		FieldValues: map[string]any{"bogus": "x"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var res errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.Error.Fields, "bogus")
}

func TestRejectsNonPost(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestRejectsMalformedBody(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/records", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRejectsUnknownRequestKeys(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, map[string]any{
		"action": "create", "table": "content", "payload": "x",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
