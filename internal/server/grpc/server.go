// Package grpc serves conduit.AccountService, the gRPC counterpart of the
// REST account endpoints.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/conduit/internal/logging"
	"github.com/dmitrijs2005/conduit/internal/rpc"
	"github.com/dmitrijs2005/conduit/internal/server/auth"
	"github.com/dmitrijs2005/conduit/internal/server/avatars"
	"github.com/dmitrijs2005/conduit/internal/server/ratelimit"
	"github.com/dmitrijs2005/conduit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/conduit/internal/server/state"
)

// AvatarPresigner issues avatar upload URLs.
type AvatarPresigner interface {
	PresignUpload(ctx context.Context, accountID, contentType string) (*avatars.Upload, error)
}

// Deps are the collaborators of the gRPC handlers. Avatars may be nil.
type Deps struct {
	State     *state.ServerState
	Repos     repomanager.RepositoryManager
	Passwords *auth.PasswordCredential
	Limiter   ratelimit.Limiter
	Avatars   AvatarPresigner
	Logger    logging.Logger
}

type GRPCServer struct {
	address string
	deps    Deps
	logger  logging.Logger
}

func NewGRPCServer(address string, d Deps) *GRPCServer {
	if d.Limiter == nil {
		d.Limiter = ratelimit.Noop{}
	}
	return &GRPCServer{
		address: address,
		deps:    d,
		logger:  d.Logger.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.metricsInterceptor, s.scopeInterceptor))
	rpc.RegisterAccountServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	return srv.Serve(lis)
}
