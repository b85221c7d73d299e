// Package common contains shared constants and sentinel errors used across
// gophauth components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// RefreshTokenBytes is the number of random bytes behind a refresh token
// value. Values are hex-encoded, so the wire form is twice as long.
const RefreshTokenBytes = 32
