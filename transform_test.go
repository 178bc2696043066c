package com2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transformSource(t *testing.T, input string, opts *Options) *Program {
	t.Helper()
	if opts == nil {
		opts = NewOptions()
	}
	tree := preprocessSource(t, input)
	prog, err := Transform(tree, opts)
	require.NoError(t, err)
	return prog
}

func TestTransformDeclarations(t *testing.T) {
	prog := transformSource(t, `
parameters {
    integer baud = 9600;
    wire clk = 2;
}

variables {
    byte data;
}
`, nil)
	require.Len(t, prog.Params, 2)
	assert.Equal(t, "baud", prog.Params[0].Name)
	assert.Equal(t, "9600", prog.Params[0].Init)
	assert.Equal(t, "wire", prog.Params[1].Ty.Base)

	require.Len(t, prog.Vars, 1)
	assert.Equal(t, "bit", prog.Vars[0].Ty.Base)
	assert.Equal(t, []int{8}, prog.Vars[0].Ty.Dims)
}

func TestTransformParameterOverride(t *testing.T) {
	opts := NewOptions()
	opts.Params["baud"] = "115200"
	prog := transformSource(t, "parameters { integer baud = 300; }", opts)

	require.Len(t, prog.Params, 1)
	assert.Equal(t, "115200", prog.Params[0].Init)

	line, err := prog.Params[0].Codegen(opts)
	require.NoError(t, err)
	assert.Equal(t, "const long baud = 115200;", line)
}

func TestTransformOverrideFillsMissingInit(t *testing.T) {
	opts := NewOptions()
	opts.Params["baud"] = "9600"
	prog := transformSource(t, "parameters { integer baud; }", opts)
	assert.Equal(t, "9600", prog.Params[0].Init)
}

func TestTransformAnonymousLabels(t *testing.T) {
	prog := transformSource(t, `
left_functions {
    function f() {
        state { }
        state named: 1 ms { }
        state { }
    }
    function g() {
        state { }
    }
}
`, nil)
	require.Len(t, prog.Left, 2)

	f := prog.Left[0]
	for _, label := range []string{"anonymous0", "named", "anonymous1"} {
		_, ok := f.LookupState(label)
		assert.True(t, ok, "expected state %q", label)
	}

	// the anonymous counter resets per function
	_, ok := prog.Left[1].LookupState("anonymous0")
	assert.True(t, ok)
}

func TestTransformFallThroughChain(t *testing.T) {
	prog := transformSource(t, `
left_functions {
    function f() {
        state a: 1 ms { }
        state b: 1 ms { }
        state c: 1 ms { }
    }
}
`, nil)
	f := prog.Left[0]
	a, _ := f.LookupState("a")
	b, _ := f.LookupState("b")
	c, _ := f.LookupState("c")
	assert.Equal(t, "b", a.NextLabel())
	assert.Equal(t, "c", b.NextLabel())
	assert.Equal(t, "", c.NextLabel())
}

func TestTransformFallThroughAcrossUnrolledLoop(t *testing.T) {
	prog := transformSource(t, `
left_functions {
    function f() {
        state head: 1 ms { }
        for i in 0..1 {
            state l_i: 1 ms { }
        }
        state tail: 1 ms { }
    }
}
`, nil)
	f := prog.Left[0]
	head, _ := f.LookupState("head")
	l0, _ := f.LookupState("l_0")
	l1, _ := f.LookupState("l_1")
	assert.Equal(t, "l_0", head.NextLabel())
	assert.Equal(t, "l_1", l0.NextLabel())
	assert.Equal(t, "tail", l1.NextLabel())
}

func TestTransformDuplicateLabels(t *testing.T) {
	tree := mustParse(t, `
left_functions {
    function f() {
        state dup: 1 ms { }
        state dup: 1 ms { }
    }
}
`)
	_, err := Transform(tree, NewOptions())
	require.Error(t, err)
	assert.IsType(t, TransformError{}, err)
	assert.Contains(t, err.Error(), "duplicate state label")
}

func TestTransformStateContents(t *testing.T) {
	prog := transformSource(t, `
left_functions {
    function f(input byte value) {
        state s: 5 ms, ack {
            sda -> data[0];
            value[0] = 1;
        } if (x) goto s;
        states s;
    }
}
`, nil)
	f := prog.Left[0]
	require.Len(t, f.Args, 1)
	assert.Equal(t, "input", f.Args[0].IO)

	s, ok := f.LookupState("s")
	require.True(t, ok)
	require.Len(t, s.Conds, 2)
	d, ok := s.Conds[0].(*Duration)
	require.True(t, ok)
	assert.Equal(t, "5", d.Val)
	assert.Equal(t, "ms", d.Unit)
	assert.Equal(t, WireCond("ack"), s.Conds[1])

	require.Len(t, s.Actions, 2)
	wa, ok := s.Actions[0].(*WireAction)
	require.True(t, ok)
	assert.Equal(t, ActionTransfer, wa.Kind)
	assert.Equal(t, DriverLeft, wa.Driver)
	assert.Equal(t, "sda", wa.Wire)
	assert.Equal(t, "data", wa.Val.Base)

	va, ok := s.Actions[1].(*VariableAssignment)
	require.True(t, ok)
	assert.Equal(t, "value", va.Var.Base)

	require.Len(t, s.Transitions, 1)
	assert.Equal(t, "x", s.Transitions[0].Predicate)
	assert.Equal(t, "s", s.Transitions[0].Target)

	// states are consumed into the map, not kept as statements
	require.Len(t, f.Stmts, 1)
	_, ok = f.Stmts[0].(*StatePath)
	assert.True(t, ok)
}

// Expression flattening concatenates token text with no separators;
// that is the language's established behavior and part of the
// external contract.
func TestTransformExpressionFlattening(t *testing.T) {
	for _, test := range []struct {
		Name     string
		Input    string
		Expected string
	}{
		{
			Name:     "Binary operators run together",
			Input:    "v = a + b;",
			Expected: "a+b",
		},
		{
			Name:     "Parenthesized",
			Input:    "v = (a + b) * 2;",
			Expected: "(a+b)*2",
		},
		{
			Name:     "Subscript collapses to bit extraction",
			Input:    "v = data[7];",
			Expected: "((data >> (7)) & 1)",
		},
		{
			Name:     "Nested subscripts",
			Input:    "v = buf[i][3];",
			Expected: "((buf[i] >> (3)) & 1)",
		},
		{
			Name:     "Unary",
			Input:    "v = !done;",
			Expected: "!done",
		},
	} {
		t.Run(test.Name, func(t *testing.T) {
			prog := transformSource(t, "left_functions { function f() { "+test.Input+" } }", nil)
			va := prog.Left[0].Stmts[0].(*VariableAssignment)
			assert.Equal(t, test.Expected, va.Expr)
		})
	}
}

func TestTransformBadTypes(t *testing.T) {
	for _, test := range []struct {
		Name  string
		Input string
	}{
		{Name: "Integer with dimension", Input: "variables { integer[2] n; }"},
		{Name: "Bit width over 64", Input: "variables { bit[65] n; }"},
	} {
		t.Run(test.Name, func(t *testing.T) {
			tree := mustParse(t, test.Input)
			_, err := Transform(tree, NewOptions())
			require.Error(t, err)
			assert.IsType(t, TransformError{}, err)
		})
	}
}
