// Package auth provides user accounts, session tokens and the actor identity
// carried through request contexts.
package auth

import "context"

// Provider resolves the actor performing the current operation.
type Provider interface {
	CurrentActor(ctx context.Context) (string, bool)
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying the actor id.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actorID)
}

// ActorFrom returns the actor id stored by WithActor.
func ActorFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok && id != ""
}

// ContextProvider reads the actor from the context.
type ContextProvider struct{}

// CurrentActor implements Provider.
func (ContextProvider) CurrentActor(ctx context.Context) (string, bool) {
	return ActorFrom(ctx)
}

// Static always reports the same actor. The CLI uses it for the local user.
type Static string

// CurrentActor implements Provider.
func (s Static) CurrentActor(context.Context) (string, bool) {
	return string(s), s != ""
}
