package grpc

import (
	"context"
	"io"
	"net"

	"github.com/dmitrijs2005/picshare/internal/logging"
	"github.com/dmitrijs2005/picshare/internal/server/metrics"
	"github.com/dmitrijs2005/picshare/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// UserService is the account side of the core as seen by the transport.
type UserService interface {
	Register(ctx context.Context, userName, password string) (*models.User, error)
	Login(ctx context.Context, userName, password string) (string, error)
	Logout(ctx context.Context, token string)
	ChangePassword(ctx context.Context, userName, oldPassword, newPassword string) error
	Rename(ctx context.Context, oldName, newName string) (int64, error)
}

// MediaService is the media registry as seen by the transport.
type MediaService interface {
	Upload(ctx context.Context, owner string, blob []byte, ext, visibility string) (*models.Media, error)
	ListPublic(ctx context.Context) ([]*models.Media, error)
	ListOwned(ctx context.Context, owner string) ([]*models.Media, error)
	Fetch(ctx context.Context, viewer, handle string) (io.ReadCloser, *models.Media, error)
}

// SessionResolver maps a session token to a username.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (string, bool)
}

type GRPCServer struct {
	address    string
	users      UserService
	media      MediaService
	sessions   SessionResolver
	logger     logging.Logger
	metrics    *metrics.Metrics
	maxMsgSize int
	health     *health.Server
}

// NewGRPCServer builds the transport adapter. maxUploadSize sizes the receive
// limit so that an upload at the limit still fits in one message; m may be nil.
func NewGRPCServer(a string, l logging.Logger, us UserService, ms MediaService, sr SessionResolver, m *metrics.Metrics, maxUploadSize int64) *GRPCServer {
	maxMsg := 4 << 20
	if maxUploadSize > 0 && int(maxUploadSize)+(1<<20) > maxMsg {
		maxMsg = int(maxUploadSize) + (1 << 20)
	}
	return &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		users:      us,
		media:      ms,
		sessions:   sr,
		metrics:    m,
		maxMsgSize: maxMsg,
		health:     health.NewServer(),
	}
}

// newServer creates the grpc.Server with interceptors, the media service and
// the health service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(s.maxMsgSize),
		grpc.ChainUnaryInterceptor(s.metricsInterceptor, s.sessionInterceptor),
	)
	srv.RegisterService(&serviceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
