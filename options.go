package com2

// Options configures one compilation: which endpoint to emit, which
// target provider supplies the C fragments, and any parameter
// overrides applied on top of the source's initializers.
type Options struct {
	// Params maps parameter names to replacement initializer
	// fragments.  Names that don't appear in the source are
	// ignored (the driver logs them).
	Params map[string]string

	// Provider supplies target-specific C fragments
	Provider Provider

	// Side selects the endpoint whose program is generated
	Side Driver
}

// NewOptions returns options primed with the defaults: the Arduino
// provider, the LEFT endpoint, and no overrides.
func NewOptions() *Options {
	return &Options{
		Params:   map[string]string{},
		Provider: ArduinoProvider{},
		Side:     DriverLeft,
	}
}
