package content

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brightpath/storefront/internal/auth"
	"github.com/brightpath/storefront/internal/config"
	"github.com/brightpath/storefront/internal/presentation/http/response"
	service "github.com/brightpath/storefront/internal/service/entitlement"
	"github.com/brightpath/storefront/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/brightpath/storefront/transport/http/content")

// Handler streams purchased assets to entitled buyers.
type Handler struct {
	entitlements *service.Service
	contentDir   string
}

// NewHandler constructs a content Handler.
func NewHandler(svc *service.Service, cfg config.Config) *Handler {
	return &Handler{entitlements: svc, contentDir: cfg.Content.Dir}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, authmw *auth.Middleware) {
	g := e.Group("/content", authmw.Require())
	g.GET("/:category/:file", h.serve)
}

func (h *Handler) serve(c echo.Context) error {
	b := response.New(c)

	principal, ok := auth.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("missing principal")).Build()
	}

	category := c.Param("category")
	file := c.Param("file")
	if !validSegment(category) || !validSegment(file) {
		return b.WithError(errorbank.NotFound("asset not found")).Build()
	}

	assetPath := "/content/" + category + "/" + file

	ctx, span := httpTracer.Start(c.Request().Context(), "content.serve", trace.WithAttributes(
		attribute.String("asset.path", assetPath),
	))
	defer span.End()

	// The entitlement decision is evaluated on every fetch; nothing is
	// cached across requests.
	entitled, err := h.entitlements.CanAccess(ctx, principal, assetPath)
	if err != nil {
		return b.WithError(err).Build()
	}
	if !entitled {
		return b.WithError(errorbank.Forbidden("content not purchased")).Build()
	}

	fullPath := filepath.Join(h.contentDir, category, file)
	if _, err := os.Stat(fullPath); err != nil {
		return b.WithError(errorbank.NotFound("asset not found")).Build()
	}
	return c.File(fullPath)
}

// validSegment rejects anything that could escape the content directory.
func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`)
}
