package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const grpcLogPrefix = "transport:grpc"

// gRPC service and method names.
const (
	ServiceName    = "inference.v1.Inference"
	MethodPredict  = "/" + ServiceName + "/Predict"
	MethodDescribe = "/" + ServiceName + "/Describe"
)

// GRPCClientOpts configures a GRPCClient.
type GRPCClientOpts struct {
	PAT      string
	Insecure bool
	// DialOptions are appended to the defaults, e.g. a context dialer in tests.
	DialOptions []grpc.DialOption
}

// GRPCClient sends envelopes over gRPC with a JSON codec.
type GRPCClient struct {
	conn *grpc.ClientConn
	pat  string
}

// DialGRPC creates a client for addr. TLS is used unless opts.Insecure is set.
func DialGRPC(addr string, opts *GRPCClientOpts) (*GRPCClient, error) {
	if opts == nil {
		opts = &GRPCClientOpts{}
	}
	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if opts.Insecure {
		creds = insecure.NewCredentials()
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}, opts.DialOptions...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create client for %s: %w", grpcLogPrefix, addr, err)
	}
	slog.Info(fmt.Sprintf("%s - gRPC client targeting %s", grpcLogPrefix, addr))
	return &GRPCClient{conn: conn, pat: opts.PAT}, nil
}

// Predict sends a predict or workflow request.
func (c *GRPCClient) Predict(ctx context.Context, req *Request) (*Response, error) {
	resp := new(Response)
	if err := c.conn.Invoke(c.outgoing(ctx), MethodPredict, req, resp); err != nil {
		return nil, fmt.Errorf("%s - predict %s: %w", grpcLogPrefix, req.ID, err)
	}
	return resp, nil
}

// Describe asks a resource for its method signatures.
func (c *GRPCClient) Describe(ctx context.Context, req *DescribeRequest) (*DescribeResponse, error) {
	resp := new(DescribeResponse)
	if err := c.conn.Invoke(c.outgoing(ctx), MethodDescribe, req, resp); err != nil {
		return nil, fmt.Errorf("%s - describe %s: %w", grpcLogPrefix, req.ID, err)
	}
	return resp, nil
}

// Close closes the connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) outgoing(ctx context.Context) context.Context {
	if c.pat == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", AuthValue(c.pat))
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Predict", Handler: predictHandler},
		{MethodName: "Describe", Handler: describeHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func predictHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(Request)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).Predict(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPredict}
	return interceptor(ctx, req, info, func(ctx context.Context, r interface{}) (interface{}, error) {
		return srv.(Handler).Predict(ctx, r.(*Request))
	})
}

func describeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(DescribeRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Handler).Describe(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodDescribe}
	return interceptor(ctx, req, info, func(ctx context.Context, r interface{}) (interface{}, error) {
		return srv.(Handler).Describe(ctx, r.(*DescribeRequest))
	})
}

// NewGRPCServer creates a server that speaks the JSON codec. When pat is set,
// calls without a matching authorization header are rejected.
func NewGRPCServer(h Handler, pat string, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ForceServerCodec(jsonCodec{})}, opts...)
	if pat != "" {
		opts = append(opts, grpc.UnaryInterceptor(authInterceptor(pat)))
	}
	s := grpc.NewServer(opts...)
	s.RegisterService(&serviceDesc, h)
	return s
}

func authInterceptor(pat string) grpc.UnaryServerInterceptor {
	want := AuthValue(pat)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		for _, v := range md.Get("authorization") {
			if strings.TrimSpace(v) == want {
				return next(ctx, req)
			}
		}
		return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
	}
}
