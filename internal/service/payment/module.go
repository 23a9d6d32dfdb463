package payment

import (
	"go.uber.org/fx"

	"github.com/brightpath/storefront/internal/gateway"
	orderrepo "github.com/brightpath/storefront/internal/repository/order"
)

// Module provides the payment reconciler to Fx.
var Module = fx.Options(
	fx.Provide(func(r *orderrepo.Repository) OrderStore { return r }),
	fx.Provide(func(c *gateway.Client) ProcessorAuditor { return c }),
	fx.Provide(NewService),
)
