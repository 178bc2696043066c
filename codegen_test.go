package com2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCodeGen returns a generator positioned inside a function
// body, where state emission normally happens
func newTestCodeGen(side Driver) *CodeGen {
	opts := NewOptions()
	opts.Side = side
	g := NewCodeGen(opts)
	g.out.indent()
	return g
}

func TestDurationDrivenTiming(t *testing.T) {
	st := NewState("s",
		[]Cond{&Duration{Val: "5", Unit: "ms"}},
		[]Action{&WireAction{Kind: ActionTransfer, Driver: DriverRight, Wire: "w", Val: NewLValue("v", nil)}},
		nil)

	g := newTestCodeGen(DriverLeft)
	require.NoError(t, g.state(NewFunction("f", nil), st, 0, true, false))

	expected := "    pinMode(w, INPUT);\n" +
		"    while (micros() - __state_time < ((5) * 1000) / 2) {}\n" +
		"    v = digitalRead(w);\n" +
		"    while (micros() - __state_time < (5) * 1000) {}\n" +
		"    __state_time = __state_time + (5) * 1000;\n"
	assert.Equal(t, expected, g.out.buffer.String())
}

// The polling loop breaks when an observed value differs from the
// expected one; this matches the language's established behavior.
func TestAssertionDriven(t *testing.T) {
	st := NewState("s",
		[]Cond{WireCond("ack")},
		[]Action{&WireAction{Kind: ActionSend, Driver: DriverRight, Wire: "ack", Expr: "1"}},
		nil)

	g := newTestCodeGen(DriverLeft)
	require.NoError(t, g.state(NewFunction("f", nil), st, 0, true, false))

	expected := "    pinMode(ack, INPUT);\n" +
		"    while (1) {\n" +
		"        if (digitalRead(ack) != 1) {\n" +
		"            break;\n" +
		"        }\n" +
		"    }\n" +
		"    __state_time = micros();\n"
	assert.Equal(t, expected, g.out.buffer.String())
}

func TestDriverDualityPerState(t *testing.T) {
	st := NewState("s",
		[]Cond{&Duration{Val: "1", Unit: "ms"}},
		[]Action{&WireAction{Kind: ActionTransfer, Driver: DriverRight, Wire: "w", Val: NewLValue("v", nil)}},
		nil)

	left := newTestCodeGen(DriverLeft)
	require.NoError(t, left.state(NewFunction("f", nil), st, 0, true, false))
	assert.Contains(t, left.out.buffer.String(), "pinMode(w, INPUT);")
	assert.Contains(t, left.out.buffer.String(), "v = digitalRead(w);")

	right := newTestCodeGen(DriverRight)
	require.NoError(t, right.state(NewFunction("f", nil), st, 0, true, false))
	assert.Contains(t, right.out.buffer.String(), "pinMode(w, OUTPUT);")
	assert.Contains(t, right.out.buffer.String(), "digitalWrite(w, v);")
	assert.NotContains(t, right.out.buffer.String(), "digitalRead")
}

// A receiver ignores the other side's SEND unless the wire is listed
// in the state's conditions
func TestReceiverIgnoresUnwatchedSend(t *testing.T) {
	st := NewState("s",
		[]Cond{&Duration{Val: "1", Unit: "ms"}},
		[]Action{&WireAction{Kind: ActionSend, Driver: DriverRight, Wire: "ack", Expr: "1"}},
		nil)

	g := newTestCodeGen(DriverLeft)
	require.NoError(t, g.state(NewFunction("f", nil), st, 0, true, false))
	out := g.out.buffer.String()
	assert.NotContains(t, out, "pinMode")
	assert.NotContains(t, out, "while (1)")
	assert.Contains(t, out, "while (micros() - __state_time")
}

func TestUnconditionalTransitionSuppressesFallThrough(t *testing.T) {
	st := NewState("s", nil, nil, []*Transition{{Target: "x"}})
	st.SetNext("y")

	g := newTestCodeGen(DriverLeft)
	require.NoError(t, g.state(NewFunction("f", nil), st, 0, true, false))
	assert.Equal(t, "    goto x_0;\n", g.out.buffer.String())
}

func TestDeadTransitionDetected(t *testing.T) {
	st := NewState("s", nil, nil, []*Transition{
		{Target: "x"},
		{Predicate: "p", Target: "y"},
	})

	g := newTestCodeGen(DriverLeft)
	err := g.state(NewFunction("f", nil), st, 0, true, false)
	require.Error(t, err)
	assert.IsType(t, CodegenError{}, err)
	assert.Contains(t, err.Error(), "unconditional transition")
}

func TestPredicatedTransitionsAndFallThrough(t *testing.T) {
	st := NewState("s", nil, nil, []*Transition{{Predicate: "v == 1", Target: "x"}})
	st.SetNext("y")

	g := newTestCodeGen(DriverLeft)
	require.NoError(t, g.state(NewFunction("f", nil), st, 0, true, false))

	expected := "    if (v == 1) {\n" +
		"        goto x_0;\n" +
		"    }\n" +
		"    goto y_0;\n"
	assert.Equal(t, expected, g.out.buffer.String())
}

func TestStatePathEndState(t *testing.T) {
	fn := NewFunction("f", nil)
	st := NewState("a", nil, nil, []*Transition{{Target: "a"}})
	require.NoError(t, fn.addState(st))

	g := newTestCodeGen(DriverLeft)
	require.NoError(t, g.statePath(fn, &StatePath{Start: "a", End: "a"}, 0))

	expected := "    goto a_0;\n" +
		"a_0:\n" +
		"    goto __exit_0;\n"
	assert.Equal(t, expected, g.out.buffer.String())
}

func TestStatePathSingleState(t *testing.T) {
	fn := NewFunction("f", nil)
	st := NewState("a", nil,
		[]Action{&WireAction{Kind: ActionSend, Driver: DriverLeft, Wire: "w", Expr: "1"}},
		nil)
	require.NoError(t, fn.addState(st))

	g := newTestCodeGen(DriverLeft)
	require.NoError(t, g.statePath(fn, &StatePath{End: "a"}, 0))

	expected := "    pinMode(w, OUTPUT);\n" +
		"    digitalWrite(w, 1);\n" +
		"    goto __exit_0;\n"
	assert.Equal(t, expected, g.out.buffer.String())
}

func TestStatePathUnknownLabel(t *testing.T) {
	g := newTestCodeGen(DriverLeft)
	err := g.statePath(NewFunction("f", nil), &StatePath{End: "ghost"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown state `ghost`")
}

func TestWireDrivenByBothSides(t *testing.T) {
	st := NewState("s", nil, []Action{
		&WireAction{Kind: ActionTransfer, Driver: DriverLeft, Wire: "w", Val: NewLValue("a", nil)},
		&WireAction{Kind: ActionTransfer, Driver: DriverRight, Wire: "w", Val: NewLValue("b", nil)},
	}, nil)

	g := newTestCodeGen(DriverLeft)
	err := g.state(NewFunction("f", nil), st, 0, true, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "driven by both sides")
}

func TestNoTimingRegimeEmitsNoWaits(t *testing.T) {
	st := NewState("s", nil,
		[]Action{&VariableAssignment{Var: NewLValue("v", nil), Expr: "1"}},
		nil)
	st.SetNext("next")

	g := newTestCodeGen(DriverLeft)
	require.NoError(t, g.state(NewFunction("f", nil), st, 0, true, false))

	expected := "    v = 1;\n" +
		"    goto next_0;\n"
	assert.Equal(t, expected, g.out.buffer.String())
}
