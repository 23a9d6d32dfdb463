// Package auth resolves authenticated principals at the transport boundary.
// Registration and login are handled elsewhere; this package only maps a
// bearer token onto a known user.
package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/entity"
	"github.com/brightpath/storefront/internal/presentation/http/response"
	"github.com/brightpath/storefront/pkg/errorbank"
)

const principalContextKey = "storefront.principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
	Role   string
}

// IsAdmin reports whether the principal carries the administrative role.
func (p Principal) IsAdmin() bool {
	return p.Role == entity.RoleAdmin
}

// UserStore resolves API tokens to user records.
type UserStore interface {
	GetByAPIToken(ctx context.Context, token string) (*entity.User, error)
}

// Middleware authenticates requests via bearer tokens.
type Middleware struct {
	users  UserStore
	logger *zap.Logger
}

// NewMiddleware constructs the auth middleware.
func NewMiddleware(users UserStore, logger *zap.Logger) *Middleware {
	return &Middleware{users: users, logger: logger}
}

// Require rejects requests without a resolvable bearer token and stores the
// principal in the request context for handlers.
func (m *Middleware) Require() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return response.New(c).WithError(errorbank.Unauthorized("missing bearer token")).Build()
			}

			user, err := m.users.GetByAPIToken(c.Request().Context(), token)
			if err != nil {
				m.logger.Debug("token resolution failed", zap.Error(err))
				return response.New(c).WithError(errorbank.Unauthorized("invalid token")).Build()
			}

			c.Set(principalContextKey, Principal{UserID: user.ID, Role: user.Role})
			return next(c)
		}
	}
}

// FromContext returns the principal stored by Require.
func FromContext(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalContextKey).(Principal)
	return p, ok
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
