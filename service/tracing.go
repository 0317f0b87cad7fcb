package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/models"
)

var tracer = otel.Tracer("taxidocs/service")

func startSpan(ctx context.Context, name string, actor models.Actor, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("actor.id", actor.ID),
		attribute.String("actor.role", actor.Role),
	)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errs.Kind(err))
	}
	span.End()
}
