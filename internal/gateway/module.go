package gateway

import "go.uber.org/fx"

// Module provides the processor gateway client to Fx.
var Module = fx.Provide(NewClient)
