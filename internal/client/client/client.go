package client

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/rpc"
)

type Client interface {
	Close() error
	Register(ctx context.Context, name, email, password string) (*rpc.AuthResponse, error)
	Login(ctx context.Context, email, password string) (*rpc.AuthResponse, error)
	Refresh(ctx context.Context) (*rpc.TokenResponse, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int, error)
	Me(ctx context.Context) (*rpc.MeResponse, error)
	LoggedIn() bool
}
