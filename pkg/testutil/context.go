// Package testutil holds shared helpers for tests.
package testutil

import (
	"context"
	"net/http"
	"time"

	id "workpermit/pkg/domain"
	"workpermit/pkg/requestcontext"
)

// Context returns a context carrying a request ID and actor, matching what
// the middleware chain produces for an authenticated request. Invalid actor
// IDs are silently ignored.
func Context(actorID string) context.Context {
	ctx := requestcontext.WithRequestID(context.Background(), "test-request")
	if actorID != "" {
		if parsed, err := id.ParseActorID(actorID); err == nil {
			ctx = requestcontext.WithActorID(ctx, parsed)
		}
	}
	return ctx
}

// ContextAt pins the context clock, so time-sensitive assertions are exact.
func ContextAt(actorID string, now time.Time) context.Context {
	return requestcontext.WithTime(Context(actorID), now)
}

// WithActor adds an actor ID to the request context, simulating the auth
// middleware. Invalid IDs are silently ignored.
func WithActor(req *http.Request, actorID string) *http.Request {
	parsed, err := id.ParseActorID(actorID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithActorID(req.Context(), parsed))
}
