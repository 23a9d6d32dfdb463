package entitlement

import (
	"go.uber.org/fx"

	orderrepo "github.com/brightpath/storefront/internal/repository/order"
	productrepo "github.com/brightpath/storefront/internal/repository/product"
)

// Module provides the entitlement checker to Fx.
var Module = fx.Options(
	fx.Provide(func(r *orderrepo.Repository) Orders { return r }),
	fx.Provide(func(r *productrepo.Repository) Products { return r }),
	fx.Provide(NewService),
)
