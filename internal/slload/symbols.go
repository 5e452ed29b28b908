package slload

import (
	"reflect"

	"github.com/traefik/yaegi/interp"

	"scratchlove/internal/slruntime"
	"scratchlove/internal/svalue"
)

// Symbols is the yaegi export table for this module's own two packages
// that emitted code imports. yaegi cannot read arbitrary .a files or
// walk GOPATH for packages outside its own sandbox — every package a
// loaded program imports must have its exported symbols registered by
// hand through Interpreter.Use, exactly the shape `yaegi extract`
// would generate for a real third-party dependency.
var Symbols = interp.Exports{
	"scratchlove/internal/svalue/svalue": {
		"CastString":      reflect.ValueOf(svalue.CastString),
		"CastNumber":      reflect.ValueOf(svalue.CastNumber),
		"CastNumberOrNaN": reflect.ValueOf(svalue.CastNumberOrNaN),
		"CastBoolean":     reflect.ValueOf(svalue.CastBoolean),
		"Compare":         reflect.ValueOf(svalue.Compare),
		"ScratchMod":      reflect.ValueOf(svalue.ScratchMod),
		"Mathop":          reflect.ValueOf(svalue.Mathop),
		"ListIndex":       reflect.ValueOf(svalue.ListIndex),
		"Clamp":           reflect.ValueOf(svalue.Clamp),
	},
	"scratchlove/internal/slruntime/slruntime": {
		"YieldPlain":      reflect.ValueOf(slruntime.YieldPlain),
		"YieldTick":       reflect.ValueOf(slruntime.YieldTick),
		"YieldWait":       reflect.ValueOf(slruntime.YieldWait),
		"Runtime":         reflect.ValueOf((*slruntime.Runtime)(nil)),
		"Target":          reflect.ValueOf((*slruntime.Target)(nil)),
		"Thread":          reflect.ValueOf((*slruntime.Thread)(nil)),
		"VariableBinding": reflect.ValueOf((*slruntime.VariableBinding)(nil)),
		"ListBinding":     reflect.ValueOf((*slruntime.ListBinding)(nil)),
		"YieldTag":        reflect.ValueOf((*slruntime.YieldTag)(nil)),
		// Value is a type alias for interface{} (slruntime.Value =
		// interface{}), but emitted function signatures spell it out as
		// slruntime.Value, so yaegi needs the symbol to resolve it as a
		// type when loading the rendered source.
		"Value": reflect.ValueOf((*slruntime.Value)(nil)),
	},
}
