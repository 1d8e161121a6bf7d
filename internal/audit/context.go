package audit

import "context"

// Actor identifies who performed an administrative action.
//
// Adapters (HTTP auth middleware, CLI) attach it to the request context
// with WithActor; services copy it into audit metadata.
type Actor struct {
	Subject  string
	Role     string
	ClientIP string
}

type actorKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	if a == (Actor{}) {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// ActorMetadata returns the audit metadata for the context's actor, or nil.
func ActorMetadata(ctx context.Context) map[string]any {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return nil
	}
	md := map[string]any{}
	if a.Subject != "" {
		md["performed_by"] = a.Subject
	}
	if a.Role != "" {
		md["role"] = a.Role
	}
	if a.ClientIP != "" {
		md["client_ip"] = a.ClientIP
	}
	if len(md) == 0 {
		return nil
	}
	return md
}
