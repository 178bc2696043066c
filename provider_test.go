package com2

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArduinoProvider(t *testing.T) {
	p := ArduinoProvider{}
	assert.Equal(t, "micros()", p.GetMicros())
	assert.Equal(t, "unsigned long", p.TimeType())
	assert.Equal(t, "int", p.WireType())
	assert.Equal(t, "pinMode(clk, OUTPUT)", p.SetWireMode("clk", WireOutput))
	assert.Equal(t, "pinMode(clk, INPUT)", p.SetWireMode("clk", WireInput))
	assert.Equal(t, "digitalWrite(clk, 1)", p.WriteWireBit("clk", "1"))
	assert.Equal(t, "digitalRead(clk)", p.ReadWireBit("clk"))
	assert.Contains(t, p.HeaderPreamble(), "#include <Arduino.h>")
}

func TestNoisyProviderFlipsWrites(t *testing.T) {
	p := NewNoisyProvider(ArduinoProvider{}, 1000)
	assert.Equal(t, "digitalWrite(clk, (v) ^ (random(1000) == 0))", p.WriteWireBit("clk", "v"))

	// everything else passes straight through
	assert.Equal(t, "micros()", p.GetMicros())
	assert.Equal(t, "digitalRead(clk)", p.ReadWireBit("clk"))
	assert.Equal(t, "pinMode(clk, INPUT)", p.SetWireMode("clk", WireInput))
	assert.Contains(t, p.HeaderPreamble(), "#include <Arduino.h>")
}
