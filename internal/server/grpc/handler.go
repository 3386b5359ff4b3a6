package grpc

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {

	userName := stringField(req, "username")
	password := stringField(req, "password")

	if password != stringField(req, "confirm") {
		return nil, toStatus(common.ErrInvalidInput)
	}

	if _, err := s.users.Register(ctx, userName, password); err != nil {
		s.logger.Info(ctx, "Registration failed", "username", userName, "error", err)
		return nil, toStatus(err)
	}

	s.logger.Info(ctx, "Registered", "username", userName)
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {

	token, err := s.users.Login(ctx, stringField(req, "username"), stringField(req, "password"))
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.String(token), nil
}

func (s *GRPCServer) Logout(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.users.Logout(ctx, tokenFromContext(ctx))
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	userName, ok := userNameFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	err := s.users.ChangePassword(ctx, userName, stringField(req, "old_password"), stringField(req, "new_password"))
	if err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Rename(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	userName, ok := userNameFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	if _, err := s.users.Rename(ctx, userName, stringField(req, "new_username")); err != nil {
		if !isClientError(err) {
			s.logger.Error(ctx, "Rename failed", "username", userName, "error", err)
		}
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Upload(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	userName, ok := userNameFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	var ext, visibility string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		ext = firstValue(md, common.ExtensionHeaderName)
		visibility = firstValue(md, common.VisibilityHeaderName)
	}

	m, err := s.media.Upload(ctx, userName, req.GetValue(), ext, visibility)
	if err != nil {
		if !isClientError(err) {
			s.logger.Error(ctx, "Upload failed", "username", userName, "error", err)
		}
		return nil, toStatus(err)
	}
	return wrapperspb.String(m.Handle), nil
}

func (s *GRPCServer) ListPublic(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	if _, ok := userNameFromContext(ctx); !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	items, err := s.media.ListPublic(ctx)
	if err != nil {
		s.logger.Error(ctx, "ListPublic failed", "error", err)
		return nil, toStatus(err)
	}
	return mediaList(items)
}

func (s *GRPCServer) ListMine(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	userName, ok := userNameFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	items, err := s.media.ListOwned(ctx, userName)
	if err != nil {
		s.logger.Error(ctx, "ListMine failed", "username", userName, "error", err)
		return nil, toStatus(err)
	}
	return mediaList(items)
}

func (s *GRPCServer) Fetch(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	userName, ok := userNameFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrorUnauthorized)
	}

	rc, _, err := s.media.Fetch(ctx, userName, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		s.logger.Error(ctx, "reading blob failed", "handle", req.GetValue(), "error", err)
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(data), nil
}

// --- helpers below ---

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func firstValue(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func mediaList(items []*models.Media) (*structpb.ListValue, error) {
	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(items))}
	for _, m := range items {
		st, err := structpb.NewStruct(map[string]any{
			"handle":     m.Handle,
			"owner":      m.Owner,
			"visibility": string(m.Visibility),
			"created_at": m.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, status.Error(codes.Internal, "internal error")
		}
		out.Values = append(out.Values, structpb.NewStructValue(st))
	}
	return out, nil
}

var clientErrors = []struct {
	err  error
	code codes.Code
}{
	{common.ErrInvalidInput, codes.InvalidArgument},
	{common.ErrInvalidVisibility, codes.InvalidArgument},
	{common.ErrInvalidFileType, codes.InvalidArgument},
	{common.ErrDuplicateUsername, codes.AlreadyExists},
	{common.ErrorUnauthorized, codes.Unauthenticated},
	{common.ErrWrongOldPassword, codes.PermissionDenied},
	{common.ErrUserNotFound, codes.NotFound},
	{common.ErrorNotFound, codes.NotFound},
	{common.ErrBlobNotFound, codes.NotFound},
}

func isClientError(err error) bool {
	for _, e := range clientErrors {
		if errors.Is(err, e.err) {
			return true
		}
	}
	return false
}

// toStatus maps service errors to gRPC statuses. Known kinds keep their
// sentinel text as the message; anything else becomes a bare Internal.
func toStatus(err error) error {
	for _, e := range clientErrors {
		if errors.Is(err, e.err) {
			return status.Error(e.code, e.err.Error())
		}
	}
	if errors.Is(err, common.ErrDiskWriteFailure) {
		return status.Error(codes.Unavailable, common.ErrDiskWriteFailure.Error())
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
