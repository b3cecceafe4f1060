package oauth2client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor that automatically
// adds service account Bearer tokens for scopes to request metadata.
//
// The interceptor adds the token as "authorization: Bearer <token>" to the outgoing
// request context metadata. If token fetch fails, the RPC call is aborted with an error.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(client.UnaryClientInterceptor("https://www.googleapis.com/auth/cloud-platform")),
//	)
func (c *Client) UnaryClientInterceptor(scopes ...string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		token, err := c.AccessToken(ctx, scopes)
		if err != nil {
			return fmt.Errorf("oauth2client: failed to get token: %w", err)
		}

		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that automatically
// adds service account Bearer tokens for scopes to request metadata.
//
// If token fetch fails, stream creation is aborted with an error.
func (c *Client) StreamClientInterceptor(scopes ...string) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		token, err := c.AccessToken(ctx, scopes)
		if err != nil {
			return nil, fmt.Errorf("oauth2client: failed to get token: %w", err)
		}

		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)

		return streamer(ctx, desc, cc, method, opts...)
	}
}
