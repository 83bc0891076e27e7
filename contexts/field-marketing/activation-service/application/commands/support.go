package commands

import (
	"context"
	"errors"
	"strings"

	"fieldops/contexts/field-marketing/activation-service/domain/entities"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("fieldops/activation-service/commands")

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "activation-service."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// withVersionRetry runs attempt and, when it lost an optimistic-lock race,
// runs it exactly once more against freshly loaded state.
func withVersionRetry(ctx context.Context, attempt func(ctx context.Context) error) error {
	err := attempt(ctx)
	if !errors.Is(err, domainerrors.ErrVersionConflict) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return attempt(ctx)
}

func actorOrSystem(actorID string) string {
	if actor := strings.TrimSpace(actorID); actor != "" {
		return actor
	}
	return entities.SystemActor
}
