package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/picshare/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "picshare.v1.MediaService"

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	health      healthpb.HealthClient

	mu           sync.RWMutex
	sessionToken string
}

func withSessionToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.SessionTokenHeaderName)
	md.Set(common.SessionTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionToken
}

func (s *GRPCClient) setToken(t string) {
	s.mu.Lock()
	s.sessionToken = t
	s.mu.Unlock()
}

func (s *GRPCClient) sessionTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if t := s.token(); t != "" {
		ctx = withSessionToken(ctx, t)
	}

	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewPicshareClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	err := c.InitGRPCClient(opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// InitGRPCClient creates the connection. Extra options are appended after the
// defaults, so tests can swap the dialer.
func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.sessionTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, dialOpts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.health = healthpb.NewHealthClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// LoggedIn reports whether Login stored a session token.
func (s *GRPCClient) LoggedIn() bool {
	return s.token() != ""
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		return s.mapError(err)
	}

	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Register(ctx context.Context, userName, password, confirm string) error {

	req, err := structpb.NewStruct(map[string]any{"username": userName, "password": password, "confirm": confirm})
	if err != nil {
		return err
	}

	if err := s.conn.Invoke(ctx, fullMethod("Register"), req, &emptypb.Empty{}); err != nil {
		return s.mapError(err)
	}

	return nil
}

func (s *GRPCClient) Login(ctx context.Context, userName, password string) error {

	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	req, err := structpb.NewStruct(map[string]any{"username": userName, "password": password})
	if err != nil {
		return err
	}

	resp := &wrapperspb.StringValue{}
	if err := s.conn.Invoke(ctx, fullMethod("Login"), req, resp); err != nil {
		return s.mapError(err)
	}

	s.setToken(resp.GetValue())

	return nil
}

// Logout revokes the session on the server and forgets the token locally
// even if the call fails.
func (s *GRPCClient) Logout(ctx context.Context) error {
	if !s.LoggedIn() {
		return ErrNotLoggedIn
	}
	defer s.setToken("")

	if err := s.conn.Invoke(ctx, fullMethod("Logout"), &emptypb.Empty{}, &emptypb.Empty{}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req, err := structpb.NewStruct(map[string]any{"old_password": oldPassword, "new_password": newPassword})
	if err != nil {
		return err
	}
	if err := s.conn.Invoke(ctx, fullMethod("ChangePassword"), req, &emptypb.Empty{}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) Rename(ctx context.Context, newUserName string) error {
	req, err := structpb.NewStruct(map[string]any{"new_username": newUserName})
	if err != nil {
		return err
	}
	if err := s.conn.Invoke(ctx, fullMethod("Rename"), req, &emptypb.Empty{}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) Upload(ctx context.Context, blob []byte, ext, visibility string) (string, error) {

	ctx = metadata.AppendToOutgoingContext(ctx,
		common.ExtensionHeaderName, ext,
		common.VisibilityHeaderName, visibility)

	resp := &wrapperspb.StringValue{}
	if err := s.conn.Invoke(ctx, fullMethod("Upload"), wrapperspb.Bytes(blob), resp); err != nil {
		return "", s.mapError(err)
	}

	return resp.GetValue(), nil
}

func (s *GRPCClient) ListPublic(ctx context.Context) ([]MediaItem, error) {
	return s.list(ctx, "ListPublic")
}

func (s *GRPCClient) ListMine(ctx context.Context) ([]MediaItem, error) {
	return s.list(ctx, "ListMine")
}

func (s *GRPCClient) list(ctx context.Context, method string) ([]MediaItem, error) {

	resp := &structpb.ListValue{}
	if err := s.conn.Invoke(ctx, fullMethod(method), &emptypb.Empty{}, resp); err != nil {
		return nil, s.mapError(err)
	}

	items := make([]MediaItem, 0, len(resp.GetValues()))
	for _, v := range resp.GetValues() {
		fields := v.GetStructValue().GetFields()
		item := MediaItem{
			Handle:     fields["handle"].GetStringValue(),
			Owner:      fields["owner"].GetStringValue(),
			Visibility: fields["visibility"].GetStringValue(),
		}
		if ts := fields["created_at"].GetStringValue(); ts != "" {
			created, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, fmt.Errorf("bad created_at %q: %w", ts, err)
			}
			item.CreatedAt = created
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *GRPCClient) Fetch(ctx context.Context, handle string) ([]byte, error) {
	resp := &wrapperspb.BytesValue{}
	if err := s.conn.Invoke(ctx, fullMethod("Fetch"), wrapperspb.String(handle), resp); err != nil {
		return nil, s.mapError(err)
	}
	return resp.GetValue(), nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return ErrNotFound
	case codes.AlreadyExists:
		return ErrAlreadyExists
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
