package ctxdata

import (
	"context"

	"github.com/google/uuid"

	"assignment_service/internal/domain"
)

// Auth is the resolved request identity. The auth middleware stores it
// once; it is read back and passed by value from there on, never
// mutated in place.
type Auth struct {
	UserID uuid.UUID
	Role   domain.Role
}

type authKey struct{}
type traceIDKey struct{}

var (
	authKeyInstance    = authKey{}
	traceIDKeyInstance = traceIDKey{}
)

func WithAuth(ctx context.Context, auth Auth) context.Context {
	return context.WithValue(ctx, authKeyInstance, auth)
}

func GetAuth(ctx context.Context) (Auth, bool) {
	v := ctx.Value(authKeyInstance)
	auth, ok := v.(Auth)
	return auth, ok
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKeyInstance, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	v := ctx.Value(traceIDKeyInstance)
	traceID, ok := v.(string)
	return traceID, ok
}
