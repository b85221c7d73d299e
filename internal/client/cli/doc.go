// Package cli is the interactive gophauth command-line client.
//
// It wires configuration and the gRPC client into a small REPL: register,
// login, me, refresh, logout and logoutall. Tokens live only in memory for
// the lifetime of the process. Expired access tokens are refreshed by the
// client package without user involvement.
package cli
