package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Context key types
type requestCtxKey struct{}
type competitionCtxKey struct{}
type userCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}
	if competition := CompetitionFromContext(ctx); competition != "" {
		fields = append(fields, zap.String("competition.id", competition))
	}
	if userID := UserIDFromContext(ctx); userID != "" {
		fields = append(fields, zap.String("user.id", userID))
	}

	return fields
}

// ContextWithRequestID stores a request ID for log correlation.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request ID, or "" if absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestCtxKey{}).(string)
	return id
}

// ContextWithCompetition stores the competition identifier being served.
func ContextWithCompetition(ctx context.Context, competitionID string) context.Context {
	return context.WithValue(ctx, competitionCtxKey{}, competitionID)
}

// CompetitionFromContext returns the competition ID, or "" if absent.
func CompetitionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(competitionCtxKey{}).(string)
	return id
}

// ContextWithUserID stores the requesting user identifier.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserIDFromContext returns the user ID, or "" if absent.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userCtxKey{}).(string)
	return id
}
