package intake

import "context"

type attemptKey struct{}

// WithAttemptID stores the submission attempt id in ctx.
func WithAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptKey{}, id)
}

// AttemptID returns the attempt id set by the controller, or "".  Creators
// use it as an idempotency key.
func AttemptID(ctx context.Context) string {
	id, _ := ctx.Value(attemptKey{}).(string)
	return id
}
