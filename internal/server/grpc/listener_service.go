package grpc

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/emmett/utter/internal/app"
	"github.com/emmett/utter/internal/observe"
	"github.com/emmett/utter/internal/segment"
)

const (
	// ServiceName is the fully qualified gRPC service name
	ServiceName = "utter.v1.Listener"

	// ListenFullMethod is the RPC path of Listen
	ListenFullMethod = "/" + ServiceName + "/Listen"
)

// ListenerServer is the server API of utter.v1.Listener. Requests and
// responses are google.protobuf.Struct so no generated code is needed.
//
// Request fields: silent_timeout, recording_timeout (seconds, optional).
// Response fields: state, reason, path, bytes, duration_ms, dropped_bytes,
// transcript, confidence.
type ListenerServer interface {
	Listen(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ListenerServiceDesc describes utter.v1.Listener for grpc.Server.RegisterService
var ListenerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ListenerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Listen", Handler: listenHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "utter/v1/listener.proto",
}

// RegisterListenerServer registers srv on s
func RegisterListenerServer(s grpc.ServiceRegistrar, srv ListenerServer) {
	s.RegisterService(&ListenerServiceDesc, srv)
}

func listenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ListenerServer).Listen(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListenFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ListenerServer).Listen(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ListenerClient calls utter.v1.Listener
type ListenerClient struct {
	cc grpc.ClientConnInterface
}

// NewListenerClient creates a client on cc
func NewListenerClient(cc grpc.ClientConnInterface) *ListenerClient {
	return &ListenerClient{cc: cc}
}

// Listen records one utterance on the server
func (c *ListenerClient) Listen(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListenFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Recorder records one utterance; *app.Session implements it
type Recorder interface {
	Listen(ctx context.Context, interrupt func() bool, opts ...segment.ListenOption) (app.Outcome, error)
}

// ListenerService implements ListenerServer on top of a Recorder
type ListenerService struct {
	recorder Recorder
	logger   *slog.Logger
}

// NewListenerService creates a new listener service
func NewListenerService(recorder Recorder, logger *slog.Logger) *ListenerService {
	if logger == nil {
		logger = observe.Discard()
	}
	return &ListenerService{recorder: recorder, logger: logger}
}

// Listen records one utterance. A cancelled RPC interrupts the session.
func (s *ListenerService) Listen(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	opts, err := listenOptions(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	outcome, err := s.recorder.Listen(ctx, nil, opts...)
	if err != nil {
		s.logger.Warn("listen failed", "error", err)
		return nil, toStatus(err)
	}

	res := outcome.Result
	fields := map[string]any{
		"state":       res.State.String(),
		"path":        res.Path,
		"bytes":       res.Bytes,
		"duration_ms": res.Duration.Milliseconds(),
	}
	if res.State == segment.StateStopped {
		fields["reason"] = res.Reason.String()
	}
	if res.Dropped > 0 {
		fields["dropped_bytes"] = res.Dropped
	}
	if outcome.Transcript != nil {
		fields["transcript"] = outcome.Transcript.Text
		fields["confidence"] = outcome.Transcript.Confidence
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

func listenOptions(req *structpb.Struct) ([]segment.ListenOption, error) {
	var opts []segment.ListenOption

	silent, ok, err := seconds(req, "silent_timeout")
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, segment.WithSilentTimeout(silent))
	}

	recording, ok, err := seconds(req, "recording_timeout")
	if err != nil {
		return nil, err
	}
	if ok {
		opts = append(opts, segment.WithRecordingTimeout(recording))
	}
	return opts, nil
}

// seconds reads a non-negative whole number field
func seconds(req *structpb.Struct, key string) (int, bool, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, false, nil
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber {
		return 0, false, errors.New(key + " must be a number")
	}
	f := n.NumberValue
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false, errors.New(key + " must be a non-negative whole number of seconds")
	}
	return int(f), true, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, app.ErrBusy):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, segment.ErrDeviceOpen), errors.Is(err, segment.ErrDeviceLost):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
