package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/rpc"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toUser(u *models.User) *rpc.User {
	if u == nil {
		return nil
	}
	return &rpc.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

func toTokens(p *services.TokenPair) rpc.TokenResponse {
	return rpc.TokenResponse{
		AccessToken:           p.AccessToken,
		AccessTokenExpiresAt:  p.AccessTokenExpiresAt,
		RefreshToken:          p.RefreshToken,
		RefreshTokenExpiresAt: p.RefreshTokenExpiresAt,
	}
}

func (s *GRPCServer) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.AuthResponse, error) {

	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	res, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &rpc.AuthResponse{TokenResponse: toTokens(&res.TokenPair), User: toUser(res.User)}, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.AuthResponse, error) {

	in := services.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role}
	if err := services.CheckSelfRegistration(in); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	res, err := s.auth.Register(ctx, in)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Registered", "user_id", res.User.ID)
	return &rpc.AuthResponse{TokenResponse: toTokens(&res.TokenPair), User: toUser(res.User)}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *rpc.RefreshRequest) (*rpc.TokenResponse, error) {

	if req.RefreshToken == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh token is required")
	}

	pair, err := s.auth.RefreshAccessToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	resp := toTokens(pair)
	return &resp, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *rpc.LogoutRequest) (*rpc.Empty, error) {

	if err := s.auth.Logout(ctx, req.RefreshToken); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.Empty{}, nil
}

func (s *GRPCServer) LogoutAll(ctx context.Context, _ *rpc.Empty) (*rpc.LogoutAllResponse, error) {

	id := auth.IdentityFromContext(ctx)
	if id == nil {
		return nil, s.toStatus(ctx, common.ErrUnauthenticated)
	}

	n, err := s.auth.LogoutAll(ctx, id.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &rpc.LogoutAllResponse{Revoked: n}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *rpc.Empty) (*rpc.MeResponse, error) {

	id := auth.IdentityFromContext(ctx)
	if id == nil {
		return nil, s.toStatus(ctx, common.ErrUnauthenticated)
	}
	return &rpc.MeResponse{ID: id.ID, Email: id.Email, Role: string(id.Role)}, nil
}
