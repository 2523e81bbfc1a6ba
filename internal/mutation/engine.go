// Package mutation orchestrates record mutations: one Execute call turns a
// declarative create/update/delete/translate request into the storage writes
// that realize it, and reports back the record's stable live id.
package mutation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"cms-records/internal/logging"
	"cms-records/internal/observability"
	"cms-records/internal/position"
	"cms-records/internal/principal"
	"cms-records/internal/relation"
	"cms-records/internal/schema"
	"cms-records/internal/storage"
	"cms-records/internal/validate"
	"cms-records/internal/workspace"
)

// Action selects the mutation kind.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionTranslate Action = "translate"
)

// Request is one mutation to execute.
type Request struct {
	Action      Action
	Table       string
	ContainerID int64
	RecordID    int64
	LocaleID    int64
	FieldValues map[string]any
	Position    string
}

// Result reports a completed mutation. ID is the record's live id (or the
// new row id for translate). Warning is set when the record was persisted
// but a follow-up step, positioning or relation sync, failed.
type Result struct {
	Action  Action
	Table   string
	ID      int64
	Warning string
}

// Engine executes mutation requests against one store and schema registry.
// It is stateless per call and safe for concurrent use.
type Engine struct {
	registry  schema.Registry
	store     storage.Store
	resolver  *workspace.Resolver
	validator *validate.Validator
	syncer    *relation.Syncer
	calc      *position.Calculator
	metrics   *observability.MutationMetrics
}

// NewEngine wires an engine over the given registry and store.
func NewEngine(registry schema.Registry, store storage.Store, metrics *observability.MutationMetrics) *Engine {
	return &Engine{
		registry:  registry,
		store:     store,
		resolver:  workspace.NewResolver(store),
		validator: validate.New(),
		syncer:    relation.NewSyncer(store),
		calc:      position.NewCalculator(store),
		metrics:   metrics,
	}
}

// Execute runs one mutation request to completion. Failures are always a
// *Error; partial failures after the primary write succeed with a warning.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := startMutationSpan(ctx, "mutation."+string(req.Action),
		attribute.String("mutation.action", string(req.Action)),
		attribute.String("mutation.table", req.Table),
	)

	result, err := e.execute(ctx, req)

	outcome := "success"
	var warning string
	if err != nil {
		err = normalize(err)
		outcome = string(AsError(err).Kind)
	} else if result.Warning != "" {
		warning = result.Warning
		outcome = "partial_success"
	}
	finishMutationSpan(span, err, warning)
	e.metrics.RecordRequest(ctx, time.Since(start), string(req.Action), req.Table, outcome)

	logger := logging.FromContext(ctx)
	if err != nil {
		logger.Warn("mutation failed",
			slog.String("action", string(req.Action)),
			slog.String("table", req.Table),
			slog.String("kind", string(AsError(err).Kind)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	logger.Info("mutation completed",
		slog.String("action", string(req.Action)),
		slog.String("table", req.Table),
		slog.Int64("id", result.ID),
		slog.String("warning", result.Warning),
	)
	return result, nil
}

func (e *Engine) execute(ctx context.Context, req Request) (*Result, error) {
	desc, p, err := e.admit(ctx, req)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case ActionCreate:
		return e.create(ctx, req, desc, p)
	case ActionUpdate:
		return e.update(ctx, req, desc, p)
	case ActionDelete:
		return e.delete(ctx, req, p)
	case ActionTranslate:
		return e.translate(ctx, req, desc, p)
	default:
		return nil, newError(KindValidation, "unknown action %q", req.Action)
	}
}

// admit resolves the table descriptor and acting principal, rejecting tables
// a caller may not address. Hidden and unknown tables are indistinguishable
// to external callers.
func (e *Engine) admit(ctx context.Context, req Request) (*schema.Descriptor, principal.Principal, error) {
	if req.Table == "" {
		return nil, nil, newError(KindValidation, "table is required")
	}
	desc, ok := e.registry.Descriptor(req.Table)
	if !ok || !e.registry.IsAccessible(req.Table) {
		return nil, nil, newError(KindValidation, "unknown table %q", req.Table)
	}
	if desc.ReadOnly {
		return nil, nil, newError(KindAccessDenied, "table %q is read-only", req.Table)
	}

	p := principal.FromContext(ctx)
	if p == nil {
		p = principal.Anonymous()
	}
	return desc, p, nil
}

func (e *Engine) create(ctx context.Context, req Request, desc *schema.Descriptor, p principal.Principal) (*Result, error) {
	if len(req.FieldValues) == 0 {
		return nil, newError(KindValidation, "create requires field values")
	}
	placement, err := position.Parse(req.Position)
	if err != nil {
		return nil, newError(KindValidation, "%s", err.Error())
	}
	if !p.CanAccessContainer(req.ContainerID) {
		return nil, newError(KindAccessDenied, "you do not have permission to write records under container %d", req.ContainerID)
	}

	values := cloneValues(req.FieldValues)
	if desc.SupportsLocale && !p.IsElevated() {
		if _, set := values[storage.ColLocale]; !set {
			values[storage.ColLocale] = int64(0)
		}
	}

	if err := checkFieldValueAuth(desc, p, req.Table, values); err != nil {
		return nil, err
	}
	coerced, err := e.validator.Validate(desc, nil, values, true)
	if err != nil {
		return nil, err
	}
	scalars, relations := relation.Extract(desc, coerced)
	if err := relation.ValidateRequests(relations); err != nil {
		return nil, newError(KindValidation, "%s", err.Error())
	}

	workspaceID := p.Workspace()
	scalars[storage.ColContainer] = req.ContainerID
	if workspaceID != workspace.LiveWorkspaceID {
		scalars[storage.ColWorkspace] = workspaceID
		scalars[storage.ColDraftState] = int64(storage.DraftStateNewPlaceholder)
	}
	if placement.Kind == position.Bottom {
		if _, explicit := scalars[storage.ColSort]; !explicit {
			sort, err := e.calc.BottomSortValue(ctx, req.Table, req.ContainerID)
			if err != nil {
				return nil, err
			}
			scalars[storage.ColSort] = sort
		}
	}

	rowID, err := e.store.Insert(ctx, req.Table, scalars)
	if err != nil {
		return nil, err
	}
	liveID := e.resolver.ToLiveID(ctx, req.Table, rowID)

	result := &Result{Action: req.Action, Table: req.Table, ID: liveID}
	if placement.IsMove() {
		targetRowID := e.resolver.ToDraftID(ctx, req.Table, placement.TargetID, workspaceID)
		if err := e.store.Move(ctx, req.Table, rowID, targetRowID, placement.MoveDirection()); err != nil {
			result.Warning = "record created but positioning failed: " + err.Error()
		}
	}
	if len(relations) > 0 {
		if err := e.syncer.Sync(ctx, liveID, req.ContainerID, workspaceID, relations, false); err != nil {
			result.Warning = "record created but relation sync failed: " + err.Error()
		}
	}
	return result, nil
}

func (e *Engine) update(ctx context.Context, req Request, desc *schema.Descriptor, p principal.Principal) (*Result, error) {
	if req.RecordID <= 0 {
		return nil, newError(KindValidation, "update requires a record id")
	}
	if len(req.FieldValues) == 0 {
		return nil, newError(KindValidation, "update requires field values")
	}

	workspaceID := p.Workspace()
	rowID := e.resolver.ToDraftID(ctx, req.Table, req.RecordID, workspaceID)

	current, err := e.store.SelectOne(ctx, req.Table, storage.Filter{
		storage.ColID:      rowID,
		storage.ColDeleted: 0,
	})
	if err != nil {
		return nil, err
	}
	if !p.CanAccessContainer(current.Int(storage.ColContainer)) {
		return nil, newError(KindAccessDenied, "you do not have permission to write records under container %d", current.Int(storage.ColContainer))
	}

	if err := checkFieldValueAuth(desc, p, req.Table, req.FieldValues); err != nil {
		return nil, err
	}
	coerced, err := e.validator.Validate(desc, current, req.FieldValues, false)
	if err != nil {
		return nil, err
	}
	scalars, relations := relation.Extract(desc, coerced)
	if err := relation.ValidateRequests(relations); err != nil {
		return nil, newError(KindValidation, "%s", err.Error())
	}

	if len(scalars) > 0 {
		if err := e.store.Update(ctx, req.Table, rowID, scalars); err != nil {
			return nil, err
		}
	}

	// The caller keeps addressing the record by its live id regardless of
	// which draft row carried the edit.
	result := &Result{Action: req.Action, Table: req.Table, ID: req.RecordID}
	if len(relations) > 0 {
		if err := e.syncer.Sync(ctx, req.RecordID, current.Int(storage.ColContainer), workspaceID, relations, true); err != nil {
			result.Warning = "record updated but relation sync failed: " + err.Error()
		}
	}
	return result, nil
}

func (e *Engine) delete(ctx context.Context, req Request, p principal.Principal) (*Result, error) {
	if req.RecordID <= 0 {
		return nil, newError(KindValidation, "delete requires a record id")
	}

	rowID := e.resolver.ToDraftID(ctx, req.Table, req.RecordID, p.Workspace())
	current, err := e.store.SelectOne(ctx, req.Table, storage.Filter{
		storage.ColID:      rowID,
		storage.ColDeleted: 0,
	})
	if err != nil {
		return nil, err
	}
	if !p.CanAccessContainer(current.Int(storage.ColContainer)) {
		return nil, newError(KindAccessDenied, "you do not have permission to write records under container %d", current.Int(storage.ColContainer))
	}

	if err := e.store.Delete(ctx, req.Table, rowID); err != nil {
		return nil, err
	}
	return &Result{Action: req.Action, Table: req.Table, ID: req.RecordID}, nil
}

func (e *Engine) translate(ctx context.Context, req Request, desc *schema.Descriptor, p principal.Principal) (*Result, error) {
	if req.RecordID <= 0 {
		return nil, newError(KindValidation, "translate requires a record id")
	}
	if req.LocaleID <= 0 {
		return nil, newError(KindValidation, "translate requires a target locale")
	}
	if !desc.SupportsLocale {
		return nil, newError(KindValidation, "table %q does not support locales", req.Table)
	}
	parentField := desc.TranslationParentField

	rowID := e.resolver.ToDraftID(ctx, req.Table, req.RecordID, p.Workspace())
	source, err := e.store.SelectOne(ctx, req.Table, storage.Filter{
		storage.ColID:      rowID,
		storage.ColDeleted: 0,
	})
	if err != nil {
		return nil, err
	}
	if !p.CanAccessContainer(source.Int(storage.ColContainer)) {
		return nil, newError(KindAccessDenied, "you do not have permission to write records under container %d", source.Int(storage.ColContainer))
	}
	if source.Int(parentField) > 0 {
		return nil, newError(KindConflict, "record %d is itself a translation; translate from the default-locale original", req.RecordID)
	}

	_, err = e.store.SelectOne(ctx, req.Table, storage.Filter{
		parentField:        req.RecordID,
		storage.ColLocale:  req.LocaleID,
		storage.ColDeleted: 0,
	})
	switch {
	case err == nil:
		return nil, newError(KindConflict, "record %d already has a translation for locale %d", req.RecordID, req.LocaleID)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	newID, err := e.store.DeriveTranslation(ctx, req.Table, rowID, req.RecordID, req.LocaleID, parentField)
	if err != nil {
		return nil, err
	}
	return &Result{Action: req.Action, Table: req.Table, ID: newID}, nil
}

// checkFieldValueAuth enforces per-field value authorization for fields
// carrying an auth group, before any coercion runs.
func checkFieldValueAuth(desc *schema.Descriptor, p principal.Principal, table string, values map[string]any) error {
	for name, value := range values {
		field, ok := desc.Field(name)
		if !ok || field.AuthGroup == "" {
			continue
		}
		if !p.IsValueAllowed(table, name, value) {
			return fieldError(KindAccessDenied, name, "you are not permitted to set field %q to this value", name)
		}
	}
	return nil
}

// normalize maps collaborator errors into the taxonomy; typed errors pass
// through untouched.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	var fe *validate.FieldError
	if errors.As(err, &fe) {
		return &Error{Kind: KindValidation, Message: fe.Error(), Fields: []string{fe.Field}}
	}
	return normalizeStorageError(err)
}

func cloneValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
