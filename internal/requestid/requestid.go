// Package requestid carries a correlation id through a context so every log
// line of one HTTP request or sweep cycle can be grouped.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

func New() string {
	return uuid.NewString()
}

// Accept returns the client supplied id when it is a well-formed UUID and a
// fresh one otherwise, so arbitrary header content never reaches the logs.
func Accept(header string) string {
	if header != "" && uuid.Validate(header) == nil {
		return header
	}
	return New()
}

func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns "" when ctx carries no id.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
