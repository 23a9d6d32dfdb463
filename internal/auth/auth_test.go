package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/entity"
	userrepo "github.com/brightpath/storefront/internal/repository/user"
)

type fakeUsers struct {
	byToken map[string]*entity.User
}

func (f *fakeUsers) GetByAPIToken(_ context.Context, token string) (*entity.User, error) {
	u, ok := f.byToken[token]
	if !ok {
		return nil, userrepo.ErrNotFound
	}
	return u, nil
}

func doRequest(t *testing.T, authHeader string) (*httptest.ResponseRecorder, Principal, bool) {
	t.Helper()
	mw := NewMiddleware(&fakeUsers{byToken: map[string]*entity.User{
		"tok-1": {ID: 10, Role: entity.RoleBuyer},
	}}, zap.NewNop())

	var principal Principal
	var resolved bool
	handler := mw.Require()(func(c echo.Context) error {
		principal, resolved = FromContext(c)
		return c.NoContent(http.StatusOK)
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec, principal, resolved
}

func TestRequireResolvesPrincipal(t *testing.T) {
	rec, principal, resolved := doRequest(t, "Bearer tok-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resolved)
	assert.Equal(t, int64(10), principal.UserID)
	assert.False(t, principal.IsAdmin())
}

func TestRequireRejectsMissingOrBadToken(t *testing.T) {
	for _, header := range []string{"", "Bearer unknown", "Basic tok-1", "Bearer "} {
		rec, _, resolved := doRequest(t, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		assert.False(t, resolved)
	}
}
