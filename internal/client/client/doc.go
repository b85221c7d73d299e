// Package client talks to the gophauth gRPC endpoint on behalf of the CLI.
//
// GRPCClient keeps the current token pair in memory, attaches the access
// token to every call and, when the server reports an expired access token,
// rotates the refresh token once and retries the call. Status codes are
// mapped to the sentinel errors in errors.go so callers can use errors.Is.
package client
