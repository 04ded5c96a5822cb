package tool

import "context"

// CallContext identifies the conversation a tool call belongs to.
type CallContext struct {
	ConversationID string
	CustomerEmail  string
}

type callContextKey struct{}

// WithCallContext attaches cc to ctx for handlers that need the conversation.
func WithCallContext(ctx context.Context, cc CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, cc)
}

// CallContextFrom returns the CallContext bound to ctx, if any.
func CallContextFrom(ctx context.Context) (CallContext, bool) {
	cc, ok := ctx.Value(callContextKey{}).(CallContext)
	return cc, ok
}
