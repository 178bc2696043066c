package com2

import (
	"fmt"
	"strconv"
	"strings"
)

// Transform types the preprocessed parse tree into a Program.  It
// flattens expressions into C fragments, applies parameter overrides
// from the options, splices unrolled state lists into their enclosing
// bodies, and builds each function's state map, assigning labels to
// anonymous states and chaining textual fall-through edges.
func Transform(tree *Tree, opts *Options) (*Program, error) {
	t := &transformer{opts: opts}
	return t.program(tree)
}

type transformer struct {
	opts *Options
}

func (t *transformer) program(tree *Tree) (*Program, error) {
	prog := &Program{}
	for _, section := range tree.Children {
		sec, ok := section.(*Tree)
		if !ok {
			continue
		}
		switch sec.Rule {
		case "parameters":
			for _, c := range sec.Children {
				param, err := t.paramDecl(c.(*Tree))
				if err != nil {
					return nil, err
				}
				prog.Params = append(prog.Params, param)
			}
		case "variables":
			for _, c := range sec.Children {
				decl, err := t.varDecl(c.(*Tree))
				if err != nil {
					return nil, err
				}
				prog.Vars = append(prog.Vars, decl)
			}
		case "shared_functions", "left_functions", "right_functions":
			for _, c := range sec.Children {
				fn, err := t.function(c.(*Tree))
				if err != nil {
					return nil, err
				}
				switch sec.Rule {
				case "shared_functions":
					prog.Shared = append(prog.Shared, fn)
				case "left_functions":
					prog.Left = append(prog.Left, fn)
				case "right_functions":
					prog.Right = append(prog.Right, fn)
				}
			}
		}
	}
	return prog, nil
}

func (t *transformer) typ(tree *Tree) (*Type, error) {
	base := tree.ChildToken(0)
	var dims []int
	for _, c := range tree.Children[1:] {
		tok := c.(*Token)
		d, err := strconv.Atoi(tok.Text)
		if err != nil {
			return nil, TransformError{
				Message: fmt.Sprintf("dimension `%s` is not an integer", tok.Text),
				Span:    tok.Span(),
			}
		}
		dims = append(dims, d)
	}
	ty, err := NewType(base.Text, dims)
	if err != nil {
		return nil, TransformError{Message: err.Error(), Span: tree.Span()}
	}
	return ty, nil
}

func (t *transformer) paramDecl(tree *Tree) (*ParamDeclaration, error) {
	ty, err := t.typ(tree.ChildTree(0))
	if err != nil {
		return nil, err
	}
	name := tree.ChildToken(1).Text
	init := ""
	if expr := tree.ChildTree(2); expr != nil {
		init = t.expr(expr)
	}
	if override, ok := t.opts.Params[name]; ok {
		init = override
	}
	return &ParamDeclaration{Ty: ty, Name: name, Init: init}, nil
}

func (t *transformer) varDecl(tree *Tree) (*VarDeclaration, error) {
	ty, err := t.typ(tree.ChildTree(0))
	if err != nil {
		return nil, err
	}
	return &VarDeclaration{Ty: ty, Name: tree.ChildToken(1).Text}, nil
}

func (t *transformer) function(tree *Tree) (*Function, error) {
	name := tree.ChildToken(0).Text
	argList := tree.ChildTree(1)
	var args []*Argument
	for _, c := range argList.Children {
		arg := c.(*Tree)
		ty, err := t.typ(arg.ChildTree(1))
		if err != nil {
			return nil, err
		}
		args = append(args, &Argument{
			IO:   arg.ChildToken(0).Text,
			Ty:   ty,
			Name: arg.ChildToken(2).Text,
		})
	}

	fn := NewFunction(name, args)
	anon := 0
	var prev *State
	var walk func(items []ParseValue) error
	walk = func(items []ParseValue) error {
		for _, item := range items {
			node, ok := item.(*Tree)
			if !ok {
				continue
			}
			switch node.Rule {
			case "state_list":
				// produced by loop unrolling; splice into the body
				if err := walk(node.Children); err != nil {
					return err
				}
			case "state":
				st := t.state(node)
				if st.Label == "" {
					st.Label = fmt.Sprintf("anonymous%d", anon)
					anon++
				}
				if err := fn.addState(st); err != nil {
					return TransformError{Message: err.Error(), Span: node.Span()}
				}
				if prev != nil {
					prev.SetNext(st.Label)
				}
				prev = st
			case "assignment":
				fn.Stmts = append(fn.Stmts, t.assignment(node))
			case "state_path":
				fn.Stmts = append(fn.Stmts, t.statePath(node))
			}
		}
		return nil
	}
	if err := walk(tree.ChildTree(2).Children); err != nil {
		return nil, err
	}
	return fn, nil
}

func (t *transformer) statePath(tree *Tree) *StatePath {
	if len(tree.Children) == 1 {
		return &StatePath{End: tree.ChildToken(0).Text}
	}
	return &StatePath{
		Start: tree.ChildToken(0).Text,
		End:   tree.ChildToken(1).Text,
	}
}

func (t *transformer) state(tree *Tree) *State {
	label := ""
	if tok := tree.ChildTree(0).ChildToken(0); tok != nil {
		label = tok.Text
	}

	var conds []Cond
	for _, c := range tree.ChildTree(1).Children {
		switch n := c.(type) {
		case *Token:
			conds = append(conds, WireCond(n.Text))
		case *Tree:
			conds = append(conds, &Duration{
				Val:  t.expr(n.ChildTree(0)),
				Unit: n.ChildToken(1).Text,
			})
		}
	}

	var actions []Action
	for _, c := range tree.ChildTree(2).Children {
		actions = append(actions, t.action(c.(*Tree)))
	}

	var transitions []*Transition
	for _, c := range tree.ChildTree(3).Children {
		node := c.(*Tree)
		pred := ""
		if expr := node.ChildTree(0).ChildTree(0); expr != nil {
			pred = t.expr(expr)
		}
		transitions = append(transitions, &Transition{
			Predicate: pred,
			Target:    node.ChildToken(1).Text,
		})
	}
	return NewState(label, conds, actions, transitions)
}

func (t *transformer) action(tree *Tree) Action {
	switch tree.Rule {
	case "assignment":
		return t.assignment(tree)
	case "transfer_to_right":
		return &WireAction{
			Kind:   ActionTransfer,
			Driver: DriverLeft,
			Wire:   tree.ChildToken(0).Text,
			Val:    t.lvalue(tree.ChildTree(1)),
		}
	case "send_to_right":
		return &WireAction{
			Kind:   ActionSend,
			Driver: DriverLeft,
			Wire:   tree.ChildToken(0).Text,
			Expr:   t.expr(tree.ChildTree(1)),
		}
	case "transfer_to_left":
		return &WireAction{
			Kind:   ActionTransfer,
			Driver: DriverRight,
			Wire:   tree.ChildToken(1).Text,
			Val:    t.lvalue(tree.ChildTree(0)),
		}
	case "send_to_left":
		return &WireAction{
			Kind:   ActionSend,
			Driver: DriverRight,
			Wire:   tree.ChildToken(1).Text,
			Expr:   t.expr(tree.ChildTree(0)),
		}
	}
	return nil
}

func (t *transformer) assignment(tree *Tree) *VariableAssignment {
	return &VariableAssignment{
		Var:  t.lvalue(tree.ChildTree(0)),
		Expr: t.expr(tree.ChildTree(1)),
	}
}

func (t *transformer) lvalue(tree *Tree) *LValue {
	base := tree.ChildToken(0).Text
	var dims []string
	for _, c := range tree.Children[1:] {
		dims = append(dims, t.expr(c.(*Tree)))
	}
	return NewLValue(base, dims)
}

// expr flattens an expression subtree into its C fragment by
// concatenating token text.  No separators are inserted; the output
// is exactly the source tokens run together, with subscripted names
// collapsed into their bit-extraction form.
func (t *transformer) expr(tree *Tree) string {
	var s strings.Builder
	for _, c := range tree.Children {
		switch n := c.(type) {
		case *Token:
			s.WriteString(n.Text)
		case *Tree:
			// subscript node
			s.WriteString(t.lvalue(n).String())
		}
	}
	return s.String()
}
