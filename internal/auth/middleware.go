package auth

import (
	"context"
	"net/http"
	"strings"
)

type authInfoKey struct{}

type AuthInfo struct {
	ClientID string
	Scopes   map[string]struct{}
}

// HasScopes reports whether every required scope was granted.
func (ai *AuthInfo) HasScopes(required ...string) bool {
	for _, s := range required {
		if _, ok := ai.Scopes[s]; !ok {
			return false
		}
	}
	return true
}

func WithAuthInfo(ctx context.Context, ai *AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey{}, ai)
}

func AuthInfoFromContext(ctx context.Context) (*AuthInfo, bool) {
	ai, ok := ctx.Value(authInfoKey{}).(*AuthInfo)
	return ai, ok
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authz string) (string, bool) {
	const prefix = "bearer "
	if len(authz) < len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(authz[len(prefix):])
	return tok, tok != ""
}

// AuthInfoFromToken validates a bearer token and returns the caller it identifies.
func AuthInfoFromToken(v *JWTValidator, token string) (*AuthInfo, error) {
	claims, err := v.Validate(token)
	if err != nil {
		return nil, err
	}
	scopes := make(map[string]struct{}, len(claims.Scopes))
	for _, s := range claims.Scopes {
		scopes[s] = struct{}{}
	}
	return &AuthInfo{ClientID: claims.ClientID, Scopes: scopes}, nil
}

type ErrorWriter func(http.ResponseWriter, *http.Request, int, string)

func Authenticate(v *JWTValidator, onError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok || v == nil {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			ai, err := AuthInfoFromToken(v, tok)
			if err != nil {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), ai)))
		})
	}
}

func RequireScopes(onError ErrorWriter, required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ai, ok := AuthInfoFromContext(r.Context())
			if !ok {
				onError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !ai.HasScopes(required...) {
				onError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
