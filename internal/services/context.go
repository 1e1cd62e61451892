package services

import "context"

type ctxKey int

const (
	keyProject ctxKey = iota
	keyStage
	keyRequest
)

func withValue(ctx context.Context, key ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func value(ctx context.Context, key ctxKey) (string, bool) {
	v, _ := ctx.Value(key).(string)
	return v, v != ""
}

// WithProjectID tags ctx with the project being reconciled. Blank ids leave
// ctx untouched, as do blank values in the other setters.
func WithProjectID(ctx context.Context, id string) context.Context {
	return withValue(ctx, keyProject, id)
}

func ProjectIDFromContext(ctx context.Context) (string, bool) { return value(ctx, keyProject) }

// WithStage tags ctx with the reconciliation stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, keyStage, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return value(ctx, keyStage) }

// WithRequestID tags ctx with the batch correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, keyRequest, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return value(ctx, keyRequest) }
