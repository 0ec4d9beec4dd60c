package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const DefaultRPCTimeout = 10 * time.Second

// UnaryTimeoutInterceptor bounds calls without a deadline by DefaultRPCTimeout.
var UnaryTimeoutInterceptor = WithDefaultTimeout(DefaultRPCTimeout)

// WithDefaultTimeout returns a client interceptor that gives every unary call
// without a deadline one of d. Calls that carry a deadline keep it.
func WithDefaultTimeout(d time.Duration) grpc.UnaryClientInterceptor {
	if d <= 0 {
		d = DefaultRPCTimeout
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
