package checkout

import (
	"go.uber.org/fx"

	"github.com/brightpath/storefront/internal/gateway"
	orderrepo "github.com/brightpath/storefront/internal/repository/order"
	productrepo "github.com/brightpath/storefront/internal/repository/product"
)

// Module provides the checkout service to Fx.
var Module = fx.Options(
	fx.Provide(func(r *orderrepo.Repository) OrderStore { return r }),
	fx.Provide(func(r *productrepo.Repository) Products { return r }),
	fx.Provide(func(c *gateway.Client) Gateway { return c }),
	fx.Provide(NewService),
)
