package auth

import "context"

type contextKey struct{}

type familyKey struct{}

type AuthContext struct {
	UserID    int64
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

func SessionID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.SessionID
}

// WithFamily records the family the request has been authorized for.
func WithFamily(ctx context.Context, familyID int64) context.Context {
	return context.WithValue(ctx, familyKey{}, familyID)
}

// FamilyID returns the authorized family, or 0 if membership was not checked.
func FamilyID(ctx context.Context) int64 {
	id, _ := ctx.Value(familyKey{}).(int64)
	return id
}
