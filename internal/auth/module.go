package auth

import (
	"go.uber.org/fx"

	userrepo "github.com/brightpath/storefront/internal/repository/user"
)

// Module provides the auth middleware to Fx.
var Module = fx.Options(
	fx.Provide(func(r *userrepo.Repository) UserStore { return r }),
	fx.Provide(NewMiddleware),
)
