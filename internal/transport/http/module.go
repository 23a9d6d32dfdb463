package http

import (
	"go.uber.org/fx"

	contenttransport "github.com/brightpath/storefront/internal/transport/http/content"
	ordertransport "github.com/brightpath/storefront/internal/transport/http/order"
	paymenttransport "github.com/brightpath/storefront/internal/transport/http/payment"
	storetransport "github.com/brightpath/storefront/internal/transport/http/store"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	storetransport.Module,
	paymenttransport.Module,
	contenttransport.Module,
	ordertransport.Module,
)
