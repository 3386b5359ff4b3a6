package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func startBufconn(t *testing.T, s *GRPCServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return conn
}

func TestBufconn_EndToEnd(t *testing.T) {
	s, _, _ := newHandlerServer()
	conn := startBufconn(t, s)
	ctx := context.Background()

	reg, _ := structpb.NewStruct(map[string]any{"username": "Luffy", "password": "pw", "confirm": "pw"})
	require.NoError(t, conn.Invoke(ctx, FullMethod(MethodRegister), reg, &emptypb.Empty{}))

	login, _ := structpb.NewStruct(map[string]any{"username": "Luffy", "password": "pw"})
	var token wrapperspb.StringValue
	require.NoError(t, conn.Invoke(ctx, FullMethod(MethodLogin), login, &token))
	assert.Equal(t, "token-Luffy", token.GetValue())

	// protected call without a token
	err := conn.Invoke(ctx, FullMethod(MethodListMine), &emptypb.Empty{}, &structpb.ListValue{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	authed := metadata.AppendToOutgoingContext(ctx, common.SessionTokenHeaderName, token.GetValue())
	upCtx := metadata.AppendToOutgoingContext(authed,
		common.ExtensionHeaderName, "png",
		common.VisibilityHeaderName, "public")

	var handle wrapperspb.StringValue
	require.NoError(t, conn.Invoke(upCtx, FullMethod(MethodUpload), wrapperspb.Bytes([]byte("png-bytes")), &handle))

	var list structpb.ListValue
	require.NoError(t, conn.Invoke(authed, FullMethod(MethodListPublic), &emptypb.Empty{}, &list))
	require.Len(t, list.GetValues(), 1)
	assert.Equal(t, handle.GetValue(), list.GetValues()[0].GetStructValue().GetFields()["handle"].GetStringValue())

	var blob wrapperspb.BytesValue
	require.NoError(t, conn.Invoke(authed, FullMethod(MethodFetch), wrapperspb.String(handle.GetValue()), &blob))
	assert.Equal(t, []byte("png-bytes"), blob.GetValue())

	err = conn.Invoke(authed, FullMethod("Nope"), &emptypb.Empty{}, &emptypb.Empty{})
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestBufconn_Health(t *testing.T) {
	s, _, _ := newHandlerServer()
	conn := startBufconn(t, s)

	hc := healthpb.NewHealthClient(conn)
	require.Eventually(t, func() bool {
		resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)
}

func TestBufconn_AnonymousHealthCheck(t *testing.T) {
	s, _, _ := newHandlerServer()
	conn := startBufconn(t, s)

	hc := healthpb.NewHealthClient(conn)
	var resp *healthpb.HealthCheckResponse
	require.Eventually(t, func() bool {
		var err error
		resp, err = hc.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	// protected methods still require a session
	err := conn.Invoke(context.Background(), FullMethod(MethodListPublic), &emptypb.Empty{}, &structpb.ListValue{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestNewGRPCServer_MessageLimit(t *testing.T) {
	assert.Equal(t, 4<<20, NewGRPCServer("", logging.Nop{}, nil, nil, nil, nil, 0).maxMsgSize)
	assert.Equal(t, 4<<20, NewGRPCServer("", logging.Nop{}, nil, nil, nil, nil, 1<<20).maxMsgSize)
	assert.Equal(t, (10<<20)+(1<<20), NewGRPCServer("", logging.Nop{}, nil, nil, nil, nil, 10<<20).maxMsgSize)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop{}, nil, nil, nil, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, nil, nil, nil, nil, 0)
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}
