// Package client talks to the Conduit server over gRPC.
//
// GRPCClient implements Client. It keeps the session token returned by
// Register, Login and UpdateUser and attaches it to every later call through
// a unary interceptor. gRPC status codes are mapped to the sentinel errors
// in errors.go so callers can match them with errors.Is.
package client
