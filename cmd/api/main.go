package main

import (
	"go.uber.org/fx"

	"github.com/brightpath/storefront/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
