package mutation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func startMutationSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("cms-records/mutation")
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func finishMutationSpan(span trace.Span, err error, warning string) {
	if span == nil {
		return
	}
	outcome := "success"
	switch {
	case err != nil:
		outcome = "typed_failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case warning != "":
		outcome = "partial_success"
	}
	span.SetAttributes(attribute.String("mutation.outcome", outcome))
	if err != nil {
		span.SetAttributes(attribute.String("mutation.error.kind", string(AsError(err).Kind)))
	}
	span.End()
}
