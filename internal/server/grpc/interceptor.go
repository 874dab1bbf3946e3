package grpc

import (
	"context"
	"net"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/rpc"
	"github.com/dmitrijs2005/conduit/internal/server/metrics"
	"github.com/dmitrijs2005/conduit/internal/server/models"
	"github.com/dmitrijs2005/conduit/internal/server/services"
	"github.com/dmitrijs2005/conduit/internal/server/state"
)

type scopeKey struct{}

type scope struct {
	handles state.Handles
	svc     *services.AccountService
	account *models.Account
}

func scopeFrom(ctx context.Context) *scope {
	sc, _ := ctx.Value(scopeKey{}).(*scope)
	return sc
}

var protectedMethods = map[string]bool{
	rpc.MethodCurrentUser:  true,
	rpc.MethodUpdateUser:   true,
	rpc.MethodAvatarUpload: true,
}

var limitedMethods = map[string]string{
	rpc.MethodRegister: "register",
	rpc.MethodLogin:    "login",
}

// scopeInterceptor copies the shared handles for the call, applies rate
// limits and, for protected methods, authenticates the caller.
func (s *GRPCServer) scopeInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if op, ok := limitedMethods[info.FullMethod]; ok {
		allowed, err := s.deps.Limiter.Allow(ctx, op+":"+peerHost(ctx))
		if err == nil && !allowed {
			metrics.ObserveAuth(op, common.ErrRateLimited)
			return nil, s.toStatus(ctx, common.ErrRateLimited)
		}
	}

	handles, err := s.deps.State.Acquire()
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	sc := &scope{
		handles: handles,
		svc:     services.NewAccountService(handles.DB, s.deps.Repos, s.deps.Passwords, s.deps.Logger),
	}

	if protectedMethods[info.FullMethod] {
		a, err := sc.svc.Authenticate(ctx, tokenFromMetadata(ctx), handles.Signer.Subject)
		if err != nil {
			return nil, s.toStatus(ctx, err)
		}
		sc.account = a
	}

	return handler(context.WithValue(ctx, scopeKey{}, sc), req)
}

func (s *GRPCServer) metricsInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	metrics.ObserveGRPC(info.FullMethod, status.Code(err).String())
	return resp, err
}

// tokenFromMetadata reads access_token, falling back to an
// "authorization: Bearer <jwt>" entry.
func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return values[0]
	}
	if values := md.Get("authorization"); len(values) > 0 {
		scheme, token, ok := strings.Cut(values[0], " ")
		if ok && (strings.EqualFold(scheme, "Bearer") || strings.EqualFold(scheme, "Token")) {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
