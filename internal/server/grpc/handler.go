package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/rpc"
	"github.com/dmitrijs2005/conduit/internal/server/metrics"
	"github.com/dmitrijs2005/conduit/internal/server/models"
)

type userEnvelope[T any] struct {
	User T `json:"user"`
}

func (s *GRPCServer) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in userEnvelope[models.RegisterParams]
	if err := rpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}

	sc := scopeFrom(ctx)
	view, err := sc.svc.Register(ctx, in.User, sc.handles.Signer.Sign)
	metrics.ObserveAuth("register", err)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "username", view.Username)
	return s.reply(ctx, userEnvelope[*models.AccountView]{User: view})
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in userEnvelope[models.LoginParams]
	if err := rpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}

	sc := scopeFrom(ctx)
	view, err := sc.svc.Login(ctx, in.User, sc.handles.Signer.Sign)
	metrics.ObserveAuth("login", err)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, userEnvelope[*models.AccountView]{User: view})
}

func (s *GRPCServer) CurrentUser(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	sc := scopeFrom(ctx)
	view, err := sc.svc.Current(ctx, sc.account, sc.handles.Signer.Sign)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, userEnvelope[*models.AccountView]{User: view})
}

func (s *GRPCServer) UpdateUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in userEnvelope[models.AccountUpdate]
	if err := rpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}

	sc := scopeFrom(ctx)
	view, err := sc.svc.UpdateAccount(ctx, in.User, sc.account, sc.handles.Signer.Sign)
	metrics.ObserveAuth("update", err)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, userEnvelope[*models.AccountView]{User: view})
}

func (s *GRPCServer) AvatarUpload(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Avatars == nil {
		return nil, status.Error(codes.Unimplemented, "avatar uploads are not configured")
	}

	var in struct {
		ContentType string `json:"content_type"`
	}
	if err := rpc.Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}

	up, err := s.deps.Avatars.PresignUpload(ctx, scopeFrom(ctx).account.ID, in.ContentType)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, up)
}

func (s *GRPCServer) reply(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := rpc.Encode(v)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

// toStatus maps account errors to gRPC codes. Server faults are logged and
// reported without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var ve *common.ValidationError
	var ce *common.ConflictError

	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, common.ErrInvalidCredentials.Error())
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.As(err, &ce):
		return status.Error(codes.AlreadyExists, ce.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, common.ErrRateLimited.Error())
	case errors.Is(err, common.ErrStateClosed):
		return status.Error(codes.Unavailable, common.ErrStateClosed.Error())
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
