package app

import (
	"go.uber.org/fx"

	"github.com/brightpath/storefront/internal/auth"
	"github.com/brightpath/storefront/internal/cache"
	"github.com/brightpath/storefront/internal/config"
	"github.com/brightpath/storefront/internal/database"
	"github.com/brightpath/storefront/internal/gateway"
	"github.com/brightpath/storefront/internal/logger"
	"github.com/brightpath/storefront/internal/messaging"
	"github.com/brightpath/storefront/internal/observability"
	repositoryorder "github.com/brightpath/storefront/internal/repository/order"
	repositoryproduct "github.com/brightpath/storefront/internal/repository/product"
	repositoryuser "github.com/brightpath/storefront/internal/repository/user"
	httpserver "github.com/brightpath/storefront/internal/server/http"
	servicecheckout "github.com/brightpath/storefront/internal/service/checkout"
	serviceentitlement "github.com/brightpath/storefront/internal/service/entitlement"
	servicepayment "github.com/brightpath/storefront/internal/service/payment"
	transporthttp "github.com/brightpath/storefront/internal/transport/http"
	"github.com/brightpath/storefront/internal/worker"
	workerpayment "github.com/brightpath/storefront/internal/worker/payment"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	gateway.Module,
	repositoryorder.Module,
	repositoryproduct.Module,
	repositoryuser.Module,
	auth.Module,
	servicecheckout.Module,
	servicepayment.Module,
	serviceentitlement.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerpayment.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
