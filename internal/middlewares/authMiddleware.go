package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"gbconnect/internal/utils"
)

// AuthCookieName is the cookie set after an OAuth login.
const AuthCookieName = "jwt"

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimSpace(header[len("Bearer "):])
		}
		return ""
	}
	if cookie, err := r.Cookie(AuthCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware accepts a Bearer token or the jwt cookie and stores the user id and
// role in the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := tokenFromRequest(r)
		if tokenString == "" {
			utils.SendJSONError(w, "Missing or malformed token", http.StatusUnauthorized)
			return
		}

		claims, err := utils.ParseJWT(tokenString)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected token")
			utils.SendJSONError(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), utils.UserIDKey, claims.ID)
		ctx = context.WithValue(ctx, utils.UserRoleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole answers 403 unless the authenticated user has one of roles. It must run
// after AuthMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := utils.GetUserRoleFromContext(r)
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.SendJSONError(w, "You do not have permission to perform this action", http.StatusForbidden)
		})
	}
}
