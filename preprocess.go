package com2

import (
	"fmt"
	"strconv"
	"strings"
)

// Preprocess rewrites the raw parse tree, replacing every for_loop
// node with the unrolled copies of its state block.  Each iteration
// gets a deep copy of the block with the loop counter substituted:
// name tokens equal to the counter are replaced wholesale by the
// iteration number, and label tokens have the counter substituted as
// a substring, so composed labels like `bit_i` expand to `bit_0`,
// `bit_1`, ... per iteration.
//
// The substring substitution in labels is deliberate and matches the
// language's established behavior; a counter whose name overlaps
// another label fragment will substitute inside it.
func Preprocess(root *Tree) (*Tree, error) {
	v, err := preprocessValue(root)
	if err != nil {
		return nil, err
	}
	return v.(*Tree), nil
}

func preprocessValue(v ParseValue) (ParseValue, error) {
	t, ok := v.(*Tree)
	if !ok {
		return v, nil
	}
	if t.Rule == "for_loop" {
		return unrollForLoop(t)
	}
	children := make([]ParseValue, 0, len(t.Children))
	for _, c := range t.Children {
		pc, err := preprocessValue(c)
		if err != nil {
			return nil, err
		}
		children = append(children, pc)
	}
	return NewTree(t.Rule, children, t.Span()), nil
}

func unrollForLoop(loop *Tree) (ParseValue, error) {
	counter := loop.ChildToken(0)
	lo, err := loopBound(loop.ChildToken(1))
	if err != nil {
		return nil, err
	}
	hi, err := loopBound(loop.ChildToken(2))
	if err != nil {
		return nil, err
	}
	body := loop.ChildTree(3)

	var children []ParseValue
	for k := lo; k <= hi; k++ {
		iter := body.Clone().(*Tree)
		substituteCounter(iter, counter.Text, k)
		// nested loops may reference the outer counter in their
		// bounds, so they unroll only after substitution
		unrolled, err := preprocessValue(iter)
		if err != nil {
			return nil, err
		}
		children = append(children, unrolled)
	}
	return NewTree("state_list", children, loop.Span()), nil
}

func loopBound(tok *Token) (int, error) {
	if tok == nil {
		return 0, PreprocessError{Message: "malformed for loop"}
	}
	n, err := strconv.Atoi(tok.Text)
	if err != nil {
		return 0, PreprocessError{
			Message: fmt.Sprintf("loop bound `%s` is not an integer", tok.Text),
			Span:    tok.Span(),
		}
	}
	return n, nil
}

func substituteCounter(v ParseValue, counter string, k int) {
	lit := strconv.Itoa(k)
	switch n := v.(type) {
	case *Token:
		switch n.Type {
		case TokenName:
			if n.Text == counter {
				n.Text = lit
				n.Type = TokenNumber
			}
		case TokenLabel:
			n.Text = strings.ReplaceAll(n.Text, counter, lit)
		}
	case *Tree:
		for _, c := range n.Children {
			substituteCounter(c, counter, k)
		}
	}
}
