// Package api exposes the record mutation engine over a JSON HTTP endpoint.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"cms-records/internal/mutation"
)

// maxRequestBody caps mutation request bodies at 2 MiB.
const maxRequestBody = 2 << 20

// MutationRequest is the JSON body of POST /api/records.
type MutationRequest struct {
	Action      string         `json:"action"`
	Table       string         `json:"table"`
	ContainerID int64          `json:"containerId"`
	RecordID    int64          `json:"recordId"`
	LocaleID    int64          `json:"localeId"`
	FieldValues map[string]any `json:"fieldValues"`
	Position    string         `json:"position"`
}

// MutationResponse is the JSON body of a successful mutation.
type MutationResponse struct {
	Action  string `json:"action"`
	Table   string `json:"table"`
	ID      int64  `json:"id"`
	Warning string `json:"warning,omitempty"`
}

type errorBody struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// RecordsHandler serves POST /api/records.
type RecordsHandler struct {
	engine *mutation.Engine
}

// NewRecordsHandler creates the handler over an engine.
func NewRecordsHandler(engine *mutation.Engine) *RecordsHandler {
	return &RecordsHandler{engine: engine}
}

func (h *RecordsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, errorBody{
			Kind:    string(mutation.KindValidation),
			Message: "only POST is supported",
		})
		return
	}

	var req MutationRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Kind:    string(mutation.KindValidation),
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.engine.Execute(r.Context(), mutation.Request{
		Action:      mutation.Action(req.Action),
		Table:       req.Table,
		ContainerID: req.ContainerID,
		RecordID:    req.RecordID,
		LocaleID:    req.LocaleID,
		FieldValues: req.FieldValues,
		Position:    req.Position,
	})
	if err != nil {
		me := mutation.AsError(err)
		writeError(w, statusForKind(me.Kind), errorBody{
			Kind:    string(me.Kind),
			Message: me.Message,
			Fields:  me.Fields,
		})
		return
	}

	writeJSON(w, http.StatusOK, MutationResponse{
		Action:  string(result.Action),
		Table:   result.Table,
		ID:      result.ID,
		Warning: result.Warning,
	})
}

func statusForKind(kind mutation.Kind) int {
	switch kind {
	case mutation.KindValidation:
		return http.StatusBadRequest
	case mutation.KindAccessDenied:
		return http.StatusForbidden
	case mutation.KindNotFound:
		return http.StatusNotFound
	case mutation.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, errorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already on the wire; an encode failure has nowhere
	// useful to go.
	_ = json.NewEncoder(w).Encode(body)
}
