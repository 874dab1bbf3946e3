// Package common contains shared constants and sentinel errors used across
// the Conduit server and CLI.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// session token on outbound requests.
const AccessTokenHeaderName = "access_token"

// TokenCookieName is the cookie the REST adapter sets on login and
// registration and accepts as an alternative to the Authorization header.
const TokenCookieName = "token"
