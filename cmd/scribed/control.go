package main

import (
	"encoding/json"
	"net"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/voiceloom/meetscribe/internal/obs"
	"github.com/voiceloom/meetscribe/pkg/api"
)

var grpcLog = obs.New("scribed.grpc")

// jsonCodec lets gRPC carry api.Event/api.Command payloads directly,
// without a generated protobuf codec — the same trick the teacher uses so
// its hand-rolled Control service can reuse its existing JSON Message type.
type jsonCodec struct{}

func (jsonCodec) Name() string                          { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)          { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error     { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// ControlServer is the bidirectional control-plane stream: the daemon
// sends api.Event, the client sends api.Command.
type ControlServer interface {
	Stream(Control_StreamServer) error
}

type Control_StreamServer interface {
	Send(*api.Event) error
	Recv() (*api.Command, error)
	grpc.ServerStream
}

type controlStreamServer struct {
	grpc.ServerStream
}

func (x *controlStreamServer) Send(e *api.Event) error {
	return x.ServerStream.SendMsg(e)
}

func (x *controlStreamServer) Recv() (*api.Command, error) {
	c := new(api.Command)
	if err := x.ServerStream.RecvMsg(c); err != nil {
		return nil, err
	}
	return c, nil
}

func controlStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ControlServer).Stream(&controlStreamServer{stream})
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: "meetscribe.Control",
	HandlerType: (*ControlServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       controlStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "cmd/scribed/control.proto",
}

func registerControlServer(s *grpc.Server, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

// Stream implements ControlServer: it runs a session's commands and relays
// every event the session emits back down the same stream, matching the
// WebSocket transport's semantics for clients that prefer gRPC.
func (d *daemon) Stream(stream Control_StreamServer) error {
	for {
		cmd, err := stream.Recv()
		if err != nil {
			return err
		}

		switch cmd.Kind {
		case api.CmdStartSession:
			sessionID, events, err := d.startSession(stream.Context(), cmd.SourcePath)
			if err != nil {
				if sendErr := stream.Send(&api.Event{Kind: api.KindError, Error: &api.Error{
					Code: "start_failed", Message: err.Error(), Recoverable: false,
				}}); sendErr != nil {
					return sendErr
				}
				continue
			}
			go func() {
				for ev := range events {
					if err := stream.Send(&ev); err != nil {
						grpcLog.Warnf("control stream %s: send failed: %v", sessionID, err)
						return
					}
				}
			}()
		case api.CmdStopSession:
			if _, err := d.stopSession(stream.Context(), cmd.SessionID); err != nil {
				if sendErr := stream.Send(&api.Event{Kind: api.KindError, Error: &api.Error{
					SessionID: cmd.SessionID, Code: "stop_failed", Message: err.Error(), Recoverable: false,
				}}); sendErr != nil {
					return sendErr
				}
			}
		default:
			if err := stream.Send(&api.Event{Kind: api.KindError, Error: &api.Error{
				Code: "unknown_command", Message: "unrecognized command kind: " + string(cmd.Kind), Recoverable: true,
			}}); err != nil {
				return err
			}
		}
	}
}

func startGRPCServer(addr string, srv ControlServer) (*grpc.Server, error) {
	lis, err := listenGRPC(addr)
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer(
		grpc.Creds(insecure.NewCredentials()),
		grpc.ForceServerCodec(jsonCodec{}),
	)
	registerControlServer(server, srv)

	go func() {
		grpcLog.Infof("gRPC control plane listening on %s", addr)
		if err := server.Serve(lis); err != nil {
			grpcLog.Warnf("gRPC server stopped: %v", err)
		}
	}()
	return server, nil
}

// listenGRPC dispatches on addr's scheme: unix:/path for a Unix domain
// socket, npipe:\\.\pipe\name for a Windows named pipe (see
// control_pipe_*.go), falling back to plain TCP for anything else.
func listenGRPC(addr string) (net.Listener, error) {
	switch {
	case strings.HasPrefix(addr, "unix:"):
		socketPath := strings.TrimPrefix(addr, "unix:")
		if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		return net.Listen("unix", socketPath)
	case strings.HasPrefix(addr, "npipe:"):
		return listenPipe(strings.TrimPrefix(addr, "npipe:"))
	default:
		return net.Listen("tcp", addr)
	}
}
