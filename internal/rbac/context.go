package rbac

import "context"

type actorContextKey struct{}

type capabilitiesContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// ContextWithCapabilities stores the module capabilities resolved for the
// current request.
func ContextWithCapabilities(ctx context.Context, caps Capabilities) context.Context {
	return context.WithValue(ctx, capabilitiesContextKey{}, caps)
}

// CapabilitiesFromContext returns the resolved capabilities; the zero value
// grants nothing.
func CapabilitiesFromContext(ctx context.Context) Capabilities {
	caps, _ := ctx.Value(capabilitiesContextKey{}).(Capabilities)
	return caps
}

type moduleContextKey struct{}

func withModule(ctx context.Context, mod Module) context.Context {
	return context.WithValue(ctx, moduleContextKey{}, mod)
}

func moduleFromContext(ctx context.Context) Module {
	mod, _ := ctx.Value(moduleContextKey{}).(Module)
	return mod
}
