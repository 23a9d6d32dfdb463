package content

import (
	"go.uber.org/fx"

	"github.com/labstack/echo/v4"

	"github.com/brightpath/storefront/internal/auth"
)

// Module wires HTTP content handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler, mw *auth.Middleware) {
		Register(e, h, mw)
	}),
)
