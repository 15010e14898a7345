package llm

import "context"

type contextKey string

const purposeKey contextKey = "llm_purpose"

// WithPurpose labels the calls made with ctx, e.g. "evaluation" or "follow_up".
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom returns the purpose label attached to ctx, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}
