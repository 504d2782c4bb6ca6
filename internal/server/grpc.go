package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"contentmapper/internal/matcher"
)

// MatcherServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct messages:
//
//	request:  {"title": "...", "search": "...", "description": "..."}
//	response: {"status": "likely", "matches": ["..."]}
const MatcherServiceName = "contentmapper.v1.Matcher"

const classifyMethod = "/" + MatcherServiceName + "/Classify"

// MatcherServer is the server API for the Matcher service.
type MatcherServer interface {
	Classify(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var matcherServiceDesc = grpc.ServiceDesc{
	ServiceName: MatcherServiceName,
	HandlerType: (*MatcherServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Classify", Handler: classifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contentmapper/v1/matcher.proto",
}

func RegisterMatcherServer(s grpc.ServiceRegistrar, srv MatcherServer) {
	s.RegisterService(&matcherServiceDesc, srv)
}

func classifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatcherServer).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: classifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatcherServer).Classify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// MatcherClient calls the Matcher service.
type MatcherClient struct {
	cc grpc.ClientConnInterface
}

func NewMatcherClient(cc grpc.ClientConnInterface) *MatcherClient {
	return &MatcherClient{cc: cc}
}

func (c *MatcherClient) Classify(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, classifyMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// matcherService adapts the Matcher to the gRPC service.
type matcherService struct {
	srv *Server
}

func (m *matcherService) Classify(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	c := matcher.Candidate{
		Title:       fields["title"].GetStringValue(),
		Search:      fields["search"].GetStringValue(),
		Description: fields["description"].GetStringValue(),
	}
	if c.Title == "" {
		return nil, status.Error(codes.InvalidArgument, "title is required")
	}

	res := m.srv.matcher.Classify(ctx, c)
	matches := make([]any, len(res.Matches))
	for i, id := range res.Matches {
		matches[i] = id
	}
	out, err := structpb.NewStruct(map[string]any{
		"status":  string(res.Status),
		"matches": matches,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding result: %v", err)
	}
	return out, nil
}

// NewGRPCServer returns a gRPC server with the Matcher service registered.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	g := grpc.NewServer(opts...)
	RegisterMatcherServer(g, &matcherService{srv: s})
	return g
}
