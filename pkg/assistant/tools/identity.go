package tools

import "context"

// DefaultUserID is the terminal fallback when no resolver produces a user.
const DefaultUserID = "default_user"

// UserResolver inspects one identity source and returns a user ID, or ""
// to pass to the next resolver in the chain.
type UserResolver func(ctx context.Context, deps *Deps) string

type ctxKey int

const userIDKey ctxKey = iota

// WithUserID stores a user ID on the context for ContextUserResolver.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// FixedUserResolver always answers with the given ID. Used in personal
// mode to pin every invocation to the owner.
func FixedUserResolver(userID string) UserResolver {
	return func(context.Context, *Deps) string { return userID }
}

// DepsUserResolver answers with the session deps' user ID.
func DepsUserResolver(_ context.Context, deps *Deps) string {
	if deps == nil {
		return ""
	}
	return deps.UserID
}

// DepsSessionResolver answers with the session ID, scoping memory to the
// session when no user is known.
func DepsSessionResolver(_ context.Context, deps *Deps) string {
	if deps == nil {
		return ""
	}
	return deps.SessionID
}

// MetadataUserResolver answers with the request metadata's user_id.
func MetadataUserResolver(_ context.Context, deps *Deps) string {
	if deps == nil {
		return ""
	}
	return deps.Metadata["user_id"]
}

// MetadataSessionResolver answers with the request metadata's session_id.
func MetadataSessionResolver(_ context.Context, deps *Deps) string {
	if deps == nil {
		return ""
	}
	return deps.Metadata["session_id"]
}

// ContextUserResolver answers with a user ID carried on the context.
func ContextUserResolver(ctx context.Context, _ *Deps) string {
	return userIDFromContext(ctx)
}

// NewResolverChain builds the standard resolution order. A non-empty
// fixedUserID pins everything to that user; otherwise the sources are
// consulted from most to least specific.
func NewResolverChain(fixedUserID string) []UserResolver {
	chain := []UserResolver{}
	if fixedUserID != "" {
		chain = append(chain, FixedUserResolver(fixedUserID))
	}
	return append(chain,
		DepsUserResolver,
		DepsSessionResolver,
		MetadataUserResolver,
		MetadataSessionResolver,
		ContextUserResolver,
	)
}

// ResolveUserID walks the chain and returns the first non-empty answer,
// falling back to DefaultUserID when every source passes.
func ResolveUserID(ctx context.Context, deps *Deps, chain []UserResolver) string {
	for _, resolve := range chain {
		if id := resolve(ctx, deps); id != "" {
			return id
		}
	}
	return DefaultUserID
}
