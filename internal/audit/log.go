// Package audit emits structured audit events for security-relevant actions.
package audit

import (
	"context"
	"errors"
	"strings"

	"irisfleet.io/internal/auth"
	"irisfleet.io/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user context.
// The entry is tagged type=audit so audit lines are filterable from the
// regular application stream.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	ev := obs.Logger().Info().
		Str("type", "audit").
		Str("event", event)
	if rid := RequestIDFromContext(ctx); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	if ident, ok := auth.IdentityFromContext(ctx); ok {
		ev = ev.Str("user_id", ident.UserID)
	}
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(event)
	return nil
}
