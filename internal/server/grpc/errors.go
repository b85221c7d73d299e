package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errorCodes maps service errors to status codes. The first match wins.
var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{common.ErrorValidation, codes.InvalidArgument},

	{common.ErrInvalidCredentials, codes.Unauthenticated},
	{common.ErrAccountInactive, codes.Unauthenticated},
	{common.ErrRefreshTokenNotFound, codes.Unauthenticated},
	{common.ErrRefreshTokenInvalid, codes.Unauthenticated},
	{common.ErrRefreshTokenReused, codes.Unauthenticated},
	{common.ErrUserInactiveOrMissing, codes.Unauthenticated},
	{common.ErrUnauthenticated, codes.Unauthenticated},
	{common.ErrInvalidToken, codes.Unauthenticated},

	{common.ErrInsufficientRole, codes.PermissionDenied},
	{common.ErrForbidden, codes.PermissionDenied},

	{common.ErrorNotFound, codes.NotFound},
	{common.ErrEmailAlreadyExists, codes.AlreadyExists},
	{common.ErrorAlreadyExists, codes.AlreadyExists},
}

func codeFor(err error) (codes.Code, bool) {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return m.code, true
		}
	}
	return codes.Internal, false
}

// toStatus converts err into a status error. Known errors keep their
// message, which clients match on; the rest become a generic Internal.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	if code, ok := codeFor(err); ok {
		return status.Error(code, err.Error())
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
