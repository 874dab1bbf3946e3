package client

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/conduit/internal/common"
	"github.com/dmitrijs2005/conduit/internal/rpc"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) setToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := s.token(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient connects lazily to endpointURL. Extra dial options are
// appended after the defaults.
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) invoke(ctx context.Context, method string, in, out any) error {
	req, err := rpc.Encode(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, method, req, resp); err != nil {
		return s.mapError(err)
	}
	return rpc.Decode(resp, out)
}

type userEnvelope[T any] struct {
	User T `json:"user"`
}

// userCall performs a call answered with {"user": ...} and keeps the token
// it carries.
func (s *GRPCClient) userCall(ctx context.Context, method string, in any) (*User, error) {
	var out userEnvelope[*User]
	if err := s.invoke(ctx, method, in, &out); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, fmt.Errorf("rpc error: empty response from %s", method)
	}
	if out.User.Token != "" {
		s.setToken(out.User.Token)
	}
	return out.User, nil
}

func (s *GRPCClient) Register(ctx context.Context, email, username string, password []byte) (*User, error) {
	return s.userCall(ctx, rpc.MethodRegister, userEnvelope[map[string]string]{User: map[string]string{
		"email":    email,
		"username": username,
		"password": string(password),
	}})
}

func (s *GRPCClient) Login(ctx context.Context, email string, password []byte) (*User, error) {
	return s.userCall(ctx, rpc.MethodLogin, userEnvelope[map[string]string]{User: map[string]string{
		"email":    email,
		"password": string(password),
	}})
}

func (s *GRPCClient) CurrentUser(ctx context.Context) (*User, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	return s.userCall(ctx, rpc.MethodCurrentUser, struct{}{})
}

func (s *GRPCClient) UpdateUser(ctx context.Context, u Update) (*User, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	return s.userCall(ctx, rpc.MethodUpdateUser, userEnvelope[Update]{User: u})
}

func (s *GRPCClient) AvatarUpload(ctx context.Context, contentType string) (*AvatarUpload, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	var out AvatarUpload
	if err := s.invoke(ctx, rpc.MethodAvatarUpload, map[string]string{"content_type": contentType}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GRPCClient) LoggedIn() bool { return s.token() != "" }

// Logout forgets the session token. Tokens are stateless, so nothing is
// sent to the server.
func (s *GRPCClient) Logout() { s.setToken("") }

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrConflict, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.NotFound:
		return ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
