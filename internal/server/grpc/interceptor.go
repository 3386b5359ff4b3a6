package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/picshare/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	userNameKey ctxKey = "userName"
	tokenKey    ctxKey = "sessionToken"
)

// publicMethods may be called without a session.
var publicMethods = map[string]bool{
	FullMethod(MethodRegister): true,
	FullMethod(MethodLogin):    true,
}

// the health service answers anonymous probes
var healthMethodPrefix = "/" + healthpb.Health_ServiceDesc.ServiceName + "/"

func isPublicMethod(fullMethod string) bool {
	return publicMethods[fullMethod] || strings.HasPrefix(fullMethod, healthMethodPrefix)
}

func (s *GRPCServer) sessionInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if isPublicMethod(info.FullMethod) {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.SessionTokenHeaderName)
		if len(values) > 0 {
			token = values[0]
		}
	}
	if len(token) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	userName, ok := s.sessions.Resolve(ctx, token)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	ctx = context.WithValue(ctx, userNameKey, userName)
	ctx = context.WithValue(ctx, tokenKey, token)

	return handler(ctx, req)
}

func (s *GRPCServer) metricsInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if s.metrics == nil {
		return handler(ctx, req)
	}

	start := time.Now()
	resp, err := handler(ctx, req)

	s.metrics.RequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
	s.metrics.RequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()

	return resp, err
}

func userNameFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userNameKey).(string)
	return v, ok && v != ""
}

func tokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey).(string)
	return v
}
