// Package grpc implements the gRPC transport.
//
// The Assistant service has a single unary method, ProcessCommand, whose
// request and reply are the JSON forms of message.Request and message.Reply.
// The standard gRPC health service is registered next to it.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/nagato/internal/message"
	"github.com/nadzzz/nagato/internal/transport"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "nagato.v1.Assistant"

const processCommandMethod = "/" + ServiceName + "/ProcessCommand"

// AssistantServer is the server API for the Assistant service.
type AssistantServer interface {
	ProcessCommand(ctx context.Context, req *message.Request) (*message.Reply, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssistantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessCommand", Handler: processCommandHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nagato/v1/assistant",
}

func processCommandHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssistantServer).ProcessCommand(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: processCommandMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AssistantServer).ProcessCommand(ctx, req.(*message.Request))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterAssistantServer registers srv on s.
func RegisterAssistantServer(s grpc.ServiceRegistrar, srv AssistantServer) {
	s.RegisterService(&serviceDesc, srv)
}

// Client calls the Assistant service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// ProcessCommand sends one request.
func (c *Client) ProcessCommand(ctx context.Context, req *message.Request, opts ...grpc.CallOption) (*message.Reply, error) {
	out := new(message.Reply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := c.cc.Invoke(ctx, processCommandMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type server struct {
	handler transport.Handler
}

func (s *server) ProcessCommand(ctx context.Context, req *message.Request) (*message.Reply, error) {
	if req.Source == "" {
		req.Source = "grpc"
	}
	reply, err := s.handler(ctx, req)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return reply, nil
}

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, handler)
}

// Serve runs the server on an existing listener until ctx is cancelled.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server = grpc.NewServer()
	t.health = health.NewServer()
	RegisterAssistantServer(t.server, &server{handler: handler})
	healthpb.RegisterHealthServer(t.server, t.health)
	t.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	if err := t.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}
