package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	txRefKey     ctxKey = "txref"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTxRef tags the context with the transaction reference being processed.
func WithTxRef(ctx context.Context, txRef string) context.Context {
	return context.WithValue(ctx, txRefKey, txRef)
}

func TxRefFrom(ctx context.Context) string {
	if v, ok := ctx.Value(txRefKey).(string); ok {
		return v
	}
	return ""
}

// FromCtx returns the global logger with request_id and txref attached when present.
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if ref := TxRefFrom(ctx); ref != "" {
		l = l.With(zap.String("txref", ref))
	}
	return l
}
