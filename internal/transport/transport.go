// Package transport defines the interface for the ways commands reach the
// assistant.
//
// Each transport (HTTP, gRPC, console) accepts requests in its own format
// and hands them to the same Handler. The dispatcher doesn't care how
// commands arrive.
package transport

import (
	"context"

	"github.com/nadzzz/nagato/internal/message"
)

// Handler processes one request and returns the reply for its sender.
type Handler func(ctx context.Context, req *message.Request) (*message.Reply, error)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http", "console").
	Name() string

	// Listen starts accepting requests and passes them to the handler.
	// It blocks until the context is cancelled or the input ends.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport.
	Close() error
}
