package middleware

import (
	"context"
	"net/http"
	"strings"

	jwt_internal "github.com/filmzi/filelink/shared/jwt"
	"github.com/filmzi/filelink/shared/logger"
	"github.com/filmzi/filelink/shared/utils"
)

// Key to store the token claims in the request context
type key int

const ClaimsKey key = 0

// Auth guards operator endpoints with bearer tokens.
type Auth struct {
	jwtService jwt_internal.JwtService
}

func NewAuth(jwtService jwt_internal.JwtService) *Auth {
	return &Auth{jwtService: jwtService}
}

// AdminOnly requires a valid token with the admin claim.
func (a *Auth) AdminOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || tokenString == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Authorization required", http.StatusUnauthorized)
				return
			}

			claims, err := a.jwtService.DecodeToken(tokenString)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !claims.Admin {
				logger.Log.Warn("non-admin token on admin route", "subject", claims.Subject, "path", r.URL.Path)
				http.Error(w, "Access denied. Only for admin", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaimsFromContext returns the claims AdminOnly stored, or nil.
func GetClaimsFromContext(r *http.Request) *jwt_internal.Claims {
	claims, ok := r.Context().Value(ClaimsKey).(*jwt_internal.Claims)
	if !ok {
		return nil
	}
	return claims
}
