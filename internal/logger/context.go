package logger

import "context"

type contextKey string

const ConnectorKey contextKey = "connector"
const SourceKey contextKey = "source"

func WithConnector(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ConnectorKey, name)
}

func GetConnector(ctx context.Context) string {
	if name, ok := ctx.Value(ConnectorKey).(string); ok {
		return name
	}
	return ""
}

func WithSource(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, SourceKey, name)
}

func GetSource(ctx context.Context) string {
	if name, ok := ctx.Value(SourceKey).(string); ok {
		return name
	}
	return ""
}
