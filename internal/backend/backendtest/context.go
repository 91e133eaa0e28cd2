package backendtest

import (
	"context"
	"encoding/json"
)

type bodyKey struct{}

func withBody(ctx context.Context, body json.RawMessage) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

func bodyFrom(ctx context.Context) json.RawMessage {
	body, _ := ctx.Value(bodyKey{}).(json.RawMessage)
	return body
}
