package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tabletally/tabletally-backend/api/responses"
	pkgAuth "github.com/tabletally/tabletally-backend/pkg/auth"
	"github.com/tabletally/tabletally-backend/pkg/config"
	pkgerrors "github.com/tabletally/tabletally-backend/pkg/errors"
	"github.com/tabletally/tabletally-backend/pkg/logger"
)

// StaffAuth validates a staff bearer token and seeds the request context
// with the claims.
func StaffAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseStaffToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxStaffID, claims.StaffID)
			ctx = context.WithValue(ctx, ctxRole, string(claims.Role))

			if logg != nil {
				ctx = logg.WithStaffID(ctx, claims.StaffID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
