package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func newHandlerServer() (*GRPCServer, *fakeUsers, *fakeMedia) {
	u, m := newFakeUsers(), newFakeMedia()
	return NewGRPCServer("127.0.0.1:0", logging.Nop{}, u, m, &fakeResolver{}, nil, 0), u, m
}

func mustStruct(t *testing.T, kv map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(kv)
	require.NoError(t, err)
	return s
}

func asUser(name string) context.Context {
	ctx := context.WithValue(context.Background(), userNameKey, name)
	return context.WithValue(ctx, tokenKey, "token-"+name)
}

func TestRegisterHandler(t *testing.T) {
	s, u, _ := newHandlerServer()
	ctx := context.Background()

	_, err := s.Register(ctx, mustStruct(t, map[string]any{"username": "Luffy", "password": "pw", "confirm": "pw"}))
	require.NoError(t, err)
	assert.Equal(t, "pw", u.registered["Luffy"])

	_, err = s.Register(ctx, mustStruct(t, map[string]any{"username": "Nami", "password": "pw", "confirm": "other"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.NotContains(t, u.registered, "Nami", "mismatch is rejected before any write")

	_, err = s.Register(ctx, mustStruct(t, map[string]any{"username": "Luffy", "password": "x", "confirm": "x"}))
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = s.Register(ctx, mustStruct(t, map[string]any{"username": "", "password": "x", "confirm": "x"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLoginHandler(t *testing.T) {
	s, u, _ := newHandlerServer()
	u.registered["Luffy"] = "pw"

	tok, err := s.Login(context.Background(), mustStruct(t, map[string]any{"username": "Luffy", "password": "pw"}))
	require.NoError(t, err)
	assert.Equal(t, "token-Luffy", tok.GetValue())

	_, err = s.Login(context.Background(), mustStruct(t, map[string]any{"username": "Luffy", "password": "bad"}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	u.loginErr = common.ErrorInternal
	_, err = s.Login(context.Background(), mustStruct(t, map[string]any{"username": "Luffy", "password": "pw"}))
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestLogoutHandler(t *testing.T) {
	s, u, _ := newHandlerServer()
	_, err := s.Logout(asUser("Luffy"), &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, []string{"token-Luffy"}, u.loggedOut)
}

func TestProtectedHandlers_RequireUser(t *testing.T) {
	s, _, _ := newHandlerServer()
	ctx := context.Background()

	_, err := s.ChangePassword(ctx, &structpb.Struct{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = s.Rename(ctx, &structpb.Struct{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = s.Upload(ctx, wrapperspb.Bytes([]byte("x")))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = s.ListPublic(ctx, &emptypb.Empty{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = s.ListMine(ctx, &emptypb.Empty{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = s.Fetch(ctx, wrapperspb.String("h"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestChangePasswordHandler(t *testing.T) {
	s, u, _ := newHandlerServer()

	_, err := s.ChangePassword(asUser("Luffy"), mustStruct(t, map[string]any{"old_password": "a", "new_password": "b"}))
	require.NoError(t, err)
	assert.Equal(t, [][3]string{{"Luffy", "a", "b"}}, u.changed)

	u.changeErr = common.ErrWrongOldPassword
	_, err = s.ChangePassword(asUser("Luffy"), mustStruct(t, map[string]any{"old_password": "a", "new_password": "b"}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestRenameHandler(t *testing.T) {
	s, u, _ := newHandlerServer()

	_, err := s.Rename(asUser("Luffy"), mustStruct(t, map[string]any{"new_username": "Monkey"}))
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"Luffy", "Monkey"}}, u.renamed)

	u.renameErr = common.ErrDuplicateUsername
	_, err = s.Rename(asUser("Luffy"), mustStruct(t, map[string]any{"new_username": "Zoro"}))
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	u.renameErr = errors.New("tx failed")
	_, err = s.Rename(asUser("Luffy"), mustStruct(t, map[string]any{"new_username": "Zoro"}))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, "internal error", status.Convert(err).Message(), "internal details stay on the server")
}

func TestUploadHandler_ReadsMetadata(t *testing.T) {
	s, _, m := newHandlerServer()

	md := metadata.Pairs(common.ExtensionHeaderName, "png", common.VisibilityHeaderName, "public")
	ctx := metadata.NewIncomingContext(asUser("Luffy"), md)

	h, err := s.Upload(ctx, wrapperspb.Bytes([]byte("img")))
	require.NoError(t, err)
	assert.NotEmpty(t, h.GetValue())
	assert.Equal(t, "Luffy", m.lastUpload.owner)
	assert.Equal(t, "png", m.lastUpload.ext)
	assert.Equal(t, "public", m.lastUpload.visibility)
	assert.Equal(t, []byte("img"), m.lastUpload.blob)

	_, err = s.Upload(asUser("Luffy"), wrapperspb.Bytes([]byte("img")))
	assert.Equal(t, codes.InvalidArgument, status.Code(err), "no metadata means no visibility")
}

func TestListHandlers(t *testing.T) {
	s, _, m := newHandlerServer()
	ctx := asUser("Luffy")
	_, _ = m.Upload(ctx, "Luffy", []byte("a"), "png", "public")
	_, _ = m.Upload(ctx, "Luffy", []byte("b"), "png", "private")
	_, _ = m.Upload(ctx, "Nami", []byte("c"), "png", "private")

	pub, err := s.ListPublic(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	require.Len(t, pub.GetValues(), 1)
	first := pub.GetValues()[0].GetStructValue().GetFields()
	assert.Equal(t, "h0.png", first["handle"].GetStringValue())
	assert.Equal(t, "Luffy", first["owner"].GetStringValue())
	assert.Equal(t, "public", first["visibility"].GetStringValue())
	assert.Equal(t, "2024-05-01T12:00:00Z", first["created_at"].GetStringValue())

	mine, err := s.ListMine(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	require.Len(t, mine.GetValues(), 2)
	assert.Equal(t, "h1.png", mine.GetValues()[0].GetStructValue().GetFields()["handle"].GetStringValue())

	m.listErr = errors.New("db down")
	_, err = s.ListPublic(ctx, &emptypb.Empty{})
	assert.Equal(t, codes.Internal, status.Code(err))
	_, err = s.ListMine(ctx, &emptypb.Empty{})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestFetchHandler(t *testing.T) {
	s, _, m := newHandlerServer()
	_, _ = m.Upload(context.Background(), "Nami", []byte("secret"), "png", "private")

	_, err := s.Fetch(asUser("Luffy"), wrapperspb.String("h0.png"))
	assert.Equal(t, codes.NotFound, status.Code(err))

	data, err := s.Fetch(asUser("Nami"), wrapperspb.String("h0.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), data.GetValue())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{common.ErrInvalidInput, codes.InvalidArgument},
		{fmt.Errorf("%w: too big", common.ErrInvalidInput), codes.InvalidArgument},
		{common.ErrInvalidVisibility, codes.InvalidArgument},
		{common.ErrInvalidFileType, codes.InvalidArgument},
		{common.ErrDuplicateUsername, codes.AlreadyExists},
		{common.ErrorUnauthorized, codes.Unauthenticated},
		{common.ErrWrongOldPassword, codes.PermissionDenied},
		{common.ErrUserNotFound, codes.NotFound},
		{common.ErrorNotFound, codes.NotFound},
		{common.ErrBlobNotFound, codes.NotFound},
		{fmt.Errorf("%w: link: EEXIST", common.ErrDiskWriteFailure), codes.Unavailable},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("anything else"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(toStatus(tt.err)))
		})
	}

	assert.Equal(t, "invalid input", status.Convert(toStatus(fmt.Errorf("%w: too big", common.ErrInvalidInput))).Message())
}
