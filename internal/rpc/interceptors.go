package rpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/example/account-ledger/internal/auth"
)

// MethodScopes lists the token scopes each method requires.
var MethodScopes = map[string][]string{
	MethodSendMoney:     {auth.ScopeTransfersWrite},
	MethodGetBalance:    {auth.ScopeAccountsRead},
	MethodCreateAccount: {auth.ScopeAccountsWrite},
}

func UnaryLoggingInterceptor(l *slog.Logger) grpc.UnaryServerInterceptor {
	if l == nil {
		l = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		l.Info("grpc_request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// UnaryAuthInterceptor validates the bearer token in the "authorization"
// metadata and enforces scopes. Methods missing from scopes are rejected.
func UnaryAuthInterceptor(v *auth.JWTValidator, scopes map[string][]string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		required, known := scopes[info.FullMethod]
		if !known {
			return nil, status.Error(codes.PermissionDenied, "forbidden")
		}

		md, _ := metadata.FromIncomingContext(ctx)
		var token string
		for _, h := range md.Get("authorization") {
			if tok, ok := auth.BearerToken(h); ok {
				token = tok
				break
			}
		}
		if token == "" || v == nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}

		ai, err := auth.AuthInfoFromToken(v, token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		if !ai.HasScopes(required...) {
			return nil, status.Error(codes.PermissionDenied, "forbidden")
		}
		return handler(auth.WithAuthInfo(ctx, ai), req)
	}
}
