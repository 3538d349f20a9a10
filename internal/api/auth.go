package api

import (
	"context"
	"net/http"
	"strings"

	pkgcrypto "github.com/linkflow-ai/linkflow/internal/pkg/crypto"
	pkgredis "github.com/linkflow-ai/linkflow/internal/pkg/redis"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// authMiddleware validates bearer JWTs against jwtManager, rejecting tokens
// that were blacklisted (logout, explicit revocation) in redisClient.
type authMiddleware struct {
	jwtManager  *pkgcrypto.JWTManager
	redisClient *pkgredis.Client
}

func newAuthMiddleware(jwtManager *pkgcrypto.JWTManager, redisClient *pkgredis.Client) *authMiddleware {
	return &authMiddleware{jwtManager: jwtManager, redisClient: redisClient}
}

func (m *authMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "missing or malformed authorization header")
			return
		}

		claims, err := m.jwtManager.ValidateToken(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid or expired token")
			return
		}
		if claims.Type != "access" {
			writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "token is not an access token")
			return
		}

		if claims.ID != "" {
			if blacklisted, err := m.redisClient.IsTokenBlacklisted(r.Context(), claims.ID); err == nil && blacklisted {
				writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "token has been revoked")
				return
			}
		}
		if logoutAt, err := m.redisClient.GetUserLogoutTime(r.Context(), claims.UserID.String()); err == nil && logoutAt > 0 {
			if claims.IssuedAt != nil && logoutAt > claims.IssuedAt.Unix() {
				writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "token has been revoked")
				return
			}
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *pkgcrypto.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*pkgcrypto.Claims)
	return claims
}
