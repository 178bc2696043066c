package com2

import "fmt"

// WireMode is the GPIO direction a wire is set to before use
type WireMode int

const (
	WireInput WireMode = iota
	WireOutput
)

func (m WireMode) String() string {
	if m == WireOutput {
		return "OUTPUT"
	}
	return "INPUT"
}

// Provider supplies the target-specific C fragments the generator
// splices into the emitted program: the time source, the GPIO
// primitives, and the storage types for both.  Every method returns
// an expression or statement fragment without trailing punctuation;
// HeaderPreamble returns a block placed at the top of the header.
type Provider interface {
	GetMicros() string
	TimeType() string
	WireType() string
	SetWireMode(wire string, mode WireMode) string
	WriteWireBit(wire, expr string) string
	ReadWireBit(wire string) string
	HeaderPreamble() string
}

// ArduinoProvider targets the Arduino core API
type ArduinoProvider struct{}

func (ArduinoProvider) GetMicros() string { return "micros()" }
func (ArduinoProvider) TimeType() string  { return "unsigned long" }
func (ArduinoProvider) WireType() string  { return "int" }

func (ArduinoProvider) SetWireMode(wire string, mode WireMode) string {
	return fmt.Sprintf("pinMode(%s, %s)", wire, mode)
}

func (ArduinoProvider) WriteWireBit(wire, expr string) string {
	return fmt.Sprintf("digitalWrite(%s, %s)", wire, expr)
}

func (ArduinoProvider) ReadWireBit(wire string) string {
	return fmt.Sprintf("digitalRead(%s)", wire)
}

func (ArduinoProvider) HeaderPreamble() string {
	return "#include <Arduino.h>\n#include <stdint.h>"
}

// NoisyProvider wraps another provider and flips each written bit
// with probability 1/FlipOneIn, for exercising protocols under bit
// errors
type NoisyProvider struct {
	Inner     Provider
	FlipOneIn int
}

func NewNoisyProvider(inner Provider, flipOneIn int) *NoisyProvider {
	return &NoisyProvider{Inner: inner, FlipOneIn: flipOneIn}
}

func (n *NoisyProvider) GetMicros() string { return n.Inner.GetMicros() }
func (n *NoisyProvider) TimeType() string  { return n.Inner.TimeType() }
func (n *NoisyProvider) WireType() string  { return n.Inner.WireType() }

func (n *NoisyProvider) SetWireMode(wire string, mode WireMode) string {
	return n.Inner.SetWireMode(wire, mode)
}

func (n *NoisyProvider) WriteWireBit(wire, expr string) string {
	noisy := fmt.Sprintf("(%s) ^ (random(%d) == 0)", expr, n.FlipOneIn)
	return n.Inner.WriteWireBit(wire, noisy)
}

func (n *NoisyProvider) ReadWireBit(wire string) string {
	return n.Inner.ReadWireBit(wire)
}

func (n *NoisyProvider) HeaderPreamble() string { return n.Inner.HeaderPreamble() }
