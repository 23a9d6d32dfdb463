// Package response renders the envelope every endpoint answers with:
// {"success": true, "data": ...} or {"success": false, "error": ...}.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/brightpath/storefront/pkg/errorbank"
)

type successEnvelope struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type errorEnvelope struct {
	Success bool           `json:"success"`
	Error   errorBody      `json:"error"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type errorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Builder accumulates a response and emits it once via Build.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
	meta   map[string]any
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered. The HTTP status follows the
// error's kind unless WithStatus set an explicit error status.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta appends auxiliary metadata to the response.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err == nil {
		return b.ctx.JSON(b.status, successEnvelope{Success: true, Data: b.data, Meta: b.meta})
	}

	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}
	return b.ctx.JSON(status, errorEnvelope{
		Meta: b.meta,
		Error: errorBody{
			Kind:    string(appErr.Kind()),
			Message: appErr.Message(),
			Details: appErr.Details(),
		},
	})
}
