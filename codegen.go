package com2

import (
	"fmt"
	"strings"
)

// CodeGen emits the `.c` side of a compilation: parameter constants,
// static variables, and the bodies of the shared functions plus the
// functions of the selected endpoint.  Function bodies drive the
// state-graph walker.
type CodeGen struct {
	opts *Options
	out  *outputWriter
}

func NewCodeGen(opts *Options) *CodeGen {
	return &CodeGen{opts: opts, out: newOutputWriter("    ")}
}

// Start walks the program and returns the generated C source
func (g *CodeGen) Start(prog *Program) (string, error) {
	for _, param := range prog.Params {
		line, err := param.Codegen(g.opts)
		if err != nil {
			return "", err
		}
		g.out.writel(line)
	}
	if len(prog.Params) > 0 {
		g.out.writel("")
	}
	for _, decl := range prog.Vars {
		g.out.writel(decl.Codegen(g.opts))
	}
	if len(prog.Vars) > 0 {
		g.out.writel("")
	}
	for _, fns := range [][]*Function{prog.Shared, prog.SideFunctions(g.opts.Side)} {
		for _, fn := range fns {
			if err := g.function(fn); err != nil {
				return "", err
			}
		}
	}
	return g.out.buffer.String(), nil
}

func (g *CodeGen) function(fn *Function) error {
	inputVars := fn.inputVars()
	g.out.writel(fn.CodegenPrototype(g.opts) + " {")
	g.out.indent()
	g.out.writeifl("%s %s = %s;", g.opts.Provider.TimeType(), stateTimeVar, g.opts.Provider.GetMicros())
	num := 0
	for _, stmt := range fn.Stmts {
		switch s := stmt.(type) {
		case *VariableAssignment:
			_, deref := inputVars[s.Var.Base]
			g.writeLines(s.Codegen(deref))
		case *StatePath:
			if err := g.statePath(fn, s, num); err != nil {
				return err
			}
			g.writeLabel(mangleLabel(exitLabel, num))
			num++
		}
	}
	g.out.writeil("return;")
	g.out.unindent()
	g.out.writel("}")
	g.out.writel("")
	return nil
}

// statePath emits the subgraph bounded by the path's end state.  The
// start state is emitted first without its label; the walk then
// expands the frontier of successor labels until the end state (or a
// dead end) closes every branch.  Each popped label is emitted once,
// so cycles that don't pass through the end state still terminate.
func (g *CodeGen) statePath(fn *Function, path *StatePath, num int) error {
	if path.Start == "" {
		st, ok := fn.LookupState(path.End)
		if !ok {
			return unknownLabel(fn, path.End)
		}
		return g.state(fn, st, num, true, true)
	}

	start, ok := fn.LookupState(path.Start)
	if !ok {
		return unknownLabel(fn, path.Start)
	}
	if err := g.state(fn, start, num, true, false); err != nil {
		return err
	}

	var (
		frontier  []string
		completed = map[string]struct{}{}
		pending   = map[string]struct{}{}
	)
	push := func(label string) {
		if _, ok := completed[label]; ok {
			return
		}
		if _, ok := pending[label]; ok {
			return
		}
		pending[label] = struct{}{}
		frontier = append(frontier, label)
	}
	for _, label := range start.NextStates() {
		push(label)
	}
	for len(frontier) > 0 {
		label := frontier[0]
		frontier = frontier[1:]
		delete(pending, label)

		st, ok := fn.LookupState(label)
		if !ok {
			return unknownLabel(fn, label)
		}
		end := label == path.End
		if err := g.state(fn, st, num, false, end); err != nil {
			return err
		}
		completed[label] = struct{}{}
		if !end {
			for _, next := range st.NextStates() {
				push(next)
			}
		}
	}
	return nil
}

func unknownLabel(fn *Function, label string) error {
	return CodegenError{
		Message: fmt.Sprintf("function `%s` references unknown state `%s`", fn.Name, label),
	}
}

// state emits one state body.  Actions are partitioned by driver
// side: this side's wire actions become mode switches and writes, the
// other side's SENDs on condition wires become assertions, and the
// other side's TRANSFERs become reads.  The reads are sampled at the
// half-period point of a duration-driven state and right after the
// polling loop of an assertion-driven one.
func (g *CodeGen) state(fn *Function, st *State, num int, start, end bool) error {
	if !start {
		g.writeLabel(mangleLabel(st.Label, num))
	}
	if err := checkDisjointDrivers(fn, st); err != nil {
		return err
	}

	condWires := st.condWires()
	var reads, assertions []*WireAction
	for _, action := range st.Actions {
		switch a := action.(type) {
		case *VariableAssignment:
			g.writeLines(a.Codegen(false))
		case *WireAction:
			switch {
			case a.Driver == g.opts.Side:
				g.out.writeil(g.opts.Provider.SetWireMode(a.Wire, WireOutput) + ";")
				if a.Kind == ActionTransfer || a.Kind == ActionSend {
					g.out.writeil(g.opts.Provider.WriteWireBit(a.Wire, a.valueExpr()) + ";")
				}
			case hasWire(condWires, a.Wire):
				if a.Kind != ActionSend {
					return CodegenError{Message: fmt.Sprintf(
						"state `%s`: TRANSFER wire `%s` cannot be a condition", st.Label, a.Wire)}
				}
				g.out.writeil(g.opts.Provider.SetWireMode(a.Wire, WireInput) + ";")
				assertions = append(assertions, a)
			case a.Kind == ActionTransfer:
				g.out.writeil(g.opts.Provider.SetWireMode(a.Wire, WireInput) + ";")
				reads = append(reads, a)
			}
		}
	}

	if end {
		g.out.writeil("goto " + mangleLabel(exitLabel, num) + ";")
		return nil
	}

	if len(assertions) > 0 {
		g.awaitAssertions(assertions)
		g.out.writeifl("%s = %s;", stateTimeVar, g.opts.Provider.GetMicros())
		g.reads(reads)
	} else if d := st.firstDuration(); d != nil {
		g.delayUntil(d.HalfUs())
		g.reads(reads)
		g.delayUntil(d.Us())
		g.out.writeifl("%s = %s + %s;", stateTimeVar, stateTimeVar, d.Us())
	}
	return g.branches(st, num)
}

// checkDisjointDrivers rejects a state in which some wire is written
// by both endpoints
func checkDisjointDrivers(fn *Function, st *State) error {
	byDriver := map[Driver]map[string]struct{}{
		DriverLeft:  {},
		DriverRight: {},
	}
	for _, action := range st.Actions {
		if a, ok := action.(*WireAction); ok {
			byDriver[a.Driver][a.Wire] = struct{}{}
		}
	}
	for wire := range byDriver[DriverLeft] {
		if _, ok := byDriver[DriverRight][wire]; ok {
			return CodegenError{Message: fmt.Sprintf(
				"function `%s`, state `%s`: wire `%s` is driven by both sides", fn.Name, st.Label, wire)}
		}
	}
	return nil
}

func hasWire(wires map[string]struct{}, wire string) bool {
	_, ok := wires[wire]
	return ok
}

func (g *CodeGen) delayUntil(deltaUs string) {
	g.out.writeifl("while (%s - %s < %s) {}", g.opts.Provider.GetMicros(), stateTimeVar, deltaUs)
}

func (g *CodeGen) reads(reads []*WireAction) {
	for _, r := range reads {
		g.writeLines(r.Val.CodegenAssign(g.opts.Provider.ReadWireBit(r.Wire), false))
	}
}

// awaitAssertions emits the polling loop over the buffered SEND
// assertions.  The loop exits when an observed value *differs* from
// the expected one; that mirrors the established behavior of the
// language even though waiting for a match may have been the intent.
func (g *CodeGen) awaitAssertions(assertions []*WireAction) {
	g.out.writeil("while (1) {")
	g.out.indent()
	for _, a := range assertions {
		g.out.writeifl("if (%s != %s) {", g.opts.Provider.ReadWireBit(a.Wire), a.Expr)
		g.out.indent()
		g.out.writeil("break;")
		g.out.unindent()
		g.out.writeil("}")
	}
	g.out.unindent()
	g.out.writeil("}")
}

func (g *CodeGen) branches(st *State, num int) error {
	addFallthrough := true
	for _, tr := range st.Transitions {
		if !addFallthrough {
			return CodegenError{Message: fmt.Sprintf(
				"state `%s`: transition to `%s` follows an unconditional transition", st.Label, tr.Target)}
		}
		jump := "goto " + mangleLabel(tr.Target, num) + ";"
		if tr.Predicate != "" {
			g.out.writeifl("if (%s) {", tr.Predicate)
			g.out.indent()
			g.out.writeil(jump)
			g.out.unindent()
			g.out.writeil("}")
		} else {
			g.out.writeil(jump)
			addFallthrough = false
		}
	}
	if addFallthrough && st.NextLabel() != "" {
		g.out.writeil("goto " + mangleLabel(st.NextLabel(), num) + ";")
	}
	return nil
}

// writeLabel emits a C label at column zero
func (g *CodeGen) writeLabel(label string) {
	g.out.unindent()
	g.out.writeil(label + ":")
	g.out.indent()
}

// writeLines emits a possibly multi-line fragment one indented line
// at a time
func (g *CodeGen) writeLines(fragment string) {
	for _, line := range strings.Split(strings.TrimRight(fragment, "\n"), "\n") {
		g.out.writeil(line)
	}
}

// HeaderGen emits the `.h` side of a compilation: the provider's
// preamble followed by the prototypes of the selected endpoint's
// functions.
type HeaderGen struct {
	opts *Options
	out  *outputWriter
}

func NewHeaderGen(opts *Options) *HeaderGen {
	return &HeaderGen{opts: opts, out: newOutputWriter("    ")}
}

func (g *HeaderGen) Start(prog *Program) (string, error) {
	g.out.writel(g.opts.Provider.HeaderPreamble())
	g.out.writel("")
	for _, fn := range prog.SideFunctions(g.opts.Side) {
		g.out.writel(fn.CodegenPrototype(g.opts) + ";")
	}
	return g.out.buffer.String(), nil
}
