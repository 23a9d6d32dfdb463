// Package entitlement answers "may this principal fetch this asset now?".
// Entitlement is derived, never stored: a buyer is entitled to an asset iff
// they own a completed order for the product that carries it. The decision
// is computed on every request so a later failed transition is visible
// immediately.
package entitlement

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/auth"
	"github.com/brightpath/storefront/internal/entity"
	productrepo "github.com/brightpath/storefront/internal/repository/product"
	"github.com/brightpath/storefront/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/brightpath/storefront/service/entitlement")

// Orders is the slice of the order repository the checker needs.
type Orders interface {
	HasCompletedOrder(ctx context.Context, userID, productID int64) (bool, error)
}

// Products resolves asset paths to products.
type Products interface {
	GetByFileURL(ctx context.Context, fileURL string) (*entity.Product, error)
}

// Service is the entitlement checker.
type Service struct {
	orders   Orders
	products Products
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders   Orders
	Products Products
	Logger   *zap.Logger
}

// NewService wires the entitlement checker.
func NewService(p Params) *Service {
	return &Service{orders: p.Orders, products: p.Products, logger: p.Logger}
}

// CanAccess reports whether the principal may fetch the asset at assetPath.
// Admins always may. An unknown asset is a NotFound error so transports can
// distinguish 404 from 403.
func (s *Service) CanAccess(ctx context.Context, principal auth.Principal, assetPath string) (bool, error) {
	ctx, span := serviceTracer.Start(ctx, "EntitlementService.CanAccess", trace.WithAttributes(
		attribute.String("asset.path", assetPath),
	))
	defer span.End()

	product, err := s.products.GetByFileURL(ctx, assetPath)
	if err != nil {
		if errors.Is(err, productrepo.ErrNotFound) {
			return false, errorbank.NotFound("asset not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return false, errorbank.Internal("failed to resolve asset", errorbank.WithCause(err))
	}

	if principal.IsAdmin() {
		return true, nil
	}

	entitled, err := s.orders.HasCompletedOrder(ctx, principal.UserID, product.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return false, errorbank.Internal("failed to check entitlement", errorbank.WithCause(err))
	}
	return entitled, nil
}
