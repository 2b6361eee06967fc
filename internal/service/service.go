// Package service implements a composable request-handler stack: a
// terminal cache service and a stats middleware that wraps it behind a
// single Service interface so middleware can wrap one another.
package service

import (
	"context"

	"github.com/rcache/rcache/pkg/message"
)

// Service takes a request and returns its response or an error. A context
// carries cancellation when the owning connection goes away.
type Service interface {
	Call(ctx context.Context, req message.Message) (message.Message, error)
}

// Func adapts a plain function to the Service interface.
type Func func(ctx context.Context, req message.Message) (message.Message, error)

// Call implements Service.
func (f Func) Call(ctx context.Context, req message.Message) (message.Message, error) {
	return f(ctx, req)
}
