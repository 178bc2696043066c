package com2

import (
	"fmt"
	"strings"
)

// BaseParser keeps the state necessary to build parsing expressions
// on top of the basic parsing expressions available, like Choice,
// ZeroOrMore, OneOrMore, Optional, etc.
type BaseParser struct {
	ffp    int
	cursor int
	line   int
	column int
	input  []rune

	productions []string

	lastErr       error
	lastErrCursor int
}

// Parser is the face the combinators see.  Having them work against
// the interface keeps the generic helpers reusable by any concrete
// parser built on BaseParser.
type Parser interface {
	State() ParserState
	Backtrack(ParserState)
	Location() Location
	Peek() rune
	Any() (rune, error)
	ExpectRune(rune) (rune, error)
	ExpectLiteral(string) (string, error)
	NewError(exp, msg string, span Span) error
}

type ParserState struct {
	Location    Location
	Productions int
}

// Location returns in which line/column/cursor the parser's input is currently in
func (p BaseParser) Location() Location {
	return Location{
		Line:   p.line + 1,
		Column: p.column + 1,
		Cursor: p.cursor,
	}
}

// SetInput associates an input to the parser struct, resetting all
// cursor state
func (p *BaseParser) SetInput(input string) {
	p.ffp = 0
	p.cursor = 0
	p.line = 0
	p.column = 0
	p.input = []rune(input)
	p.lastErr = nil
	p.lastErrCursor = 0
	p.productions = nil
}

// Peek returns the character under the input cursor, or eof if the
// entire input has been consumed
func (p *BaseParser) Peek() rune {
	if p.cursor >= len(p.input) {
		return eof
	}
	return p.input[p.cursor]
}

func (p BaseParser) State() ParserState {
	return ParserState{
		Location:    p.Location(),
		Productions: len(p.productions),
	}
}

// Backtrack resets the internal parser state to a previously captured one
func (p *BaseParser) Backtrack(state ParserState) {
	p.cursor = state.Location.Cursor
	p.line = state.Location.Line - 1
	p.column = state.Location.Column - 1
	if state.Productions <= len(p.productions) {
		p.productions = p.productions[:state.Productions]
	}
}

// Any matches any rune under the input cursor, and will error on EOF
func (p *BaseParser) Any() (rune, error) {
	pos := p.Location()
	c := p.Peek()
	if c == eof {
		return 0, p.NewError(".", "unexpected end of input", NewSpan(pos, p.Location()))
	}
	p.cursor++
	p.column++
	if c == '\n' {
		p.column = 0
		p.line++
	}
	if p.cursor > p.ffp {
		p.ffp = p.cursor
	}
	return c, nil
}

func (p *BaseParser) ExpectRune(v rune) (rune, error) {
	start := p.Location()
	c := p.Peek()
	if c == v {
		return p.Any()
	}
	exp := fmt.Sprintf("`%c`", v)
	msg := fmt.Sprintf("expected `%c` but got `%c`", v, c)
	return 0, p.NewError(exp, msg, NewSpan(start, p.Location()))
}

func (p *BaseParser) ExpectRuneFn(v rune) ParserFn[rune] {
	return func(p Parser) (rune, error) { return p.ExpectRune(v) }
}

func (p *BaseParser) ExpectLiteral(literal string) (string, error) {
	state := p.State()
	for _, v := range literal {
		c, err := p.Any()
		if err != nil {
			p.Backtrack(state)
			return "", err
		}
		if c == v {
			continue
		}
		span := NewSpan(state.Location, p.Location())
		err = p.NewError(fmt.Sprintf("`%s`", literal), fmt.Sprintf("missing `%s`", literal), span)
		p.Backtrack(state)
		return "", err
	}
	return literal, nil
}

// NewError creates a type of error that is handled and discarded when
// the parser backtracks the input position.  The error raised at the
// farthest point of the input is remembered, as it is the most useful
// one to surface when the whole parse fails.
func (p *BaseParser) NewError(exp, msg string, span Span) error {
	e := &backtrackingError{
		Production: p.peekProduction(),
		Expected:   exp,
		Message:    msg,
		Span:       span,
	}
	if span.Start.Cursor >= p.lastErrCursor {
		p.lastErr = e
		p.lastErrCursor = span.Start.Cursor
	}
	return e
}

func (p *BaseParser) pushProduction(name string) {
	p.productions = append(p.productions, name)
}

func (p *BaseParser) popProduction() {
	p.productions = p.productions[:len(p.productions)-1]
}

func (p *BaseParser) peekProduction() string {
	if len(p.productions) == 0 {
		return ""
	}
	return p.productions[len(p.productions)-1]
}

// surfaceError converts the farthest recorded backtracking error into
// the public ParsingError type
func (p *BaseParser) surfaceError(err error) error {
	if b, ok := p.lastErr.(*backtrackingError); ok {
		return ParsingError{
			Message:    b.Message,
			Expected:   b.Expected,
			Production: b.Production,
			Span:       b.Span,
		}
	}
	if b, ok := err.(*backtrackingError); ok {
		return ParsingError{
			Message:    b.Message,
			Expected:   b.Expected,
			Production: b.Production,
			Span:       b.Span,
		}
	}
	return err
}

// ParserFn is the signature of a parser function.  It unfortunately
// can't be a method because of Go's generics limitations, but a
// closure will fit in just right.
type ParserFn[T any] func(p Parser) (T, error)

// ZeroOrMore will call `fn` until it errors out, collecting and
// returning all the successful outputs.  It backtracks on error.
func ZeroOrMore[T any](p Parser, fn ParserFn[T]) ([]T, error) {
	var output []T
	for {
		state := p.State()
		item, err := fn(p)
		if err != nil {
			p.Backtrack(state)
			break
		}
		output = append(output, item)
	}
	return output, nil
}

// OneOrMore will match `fn` once and then pass fn to ZeroOrMore
func OneOrMore[T any](p Parser, fn ParserFn[T]) ([]T, error) {
	var output []T
	head, err := fn(p)
	if err != nil {
		return nil, err
	}
	output = append(output, head)
	tail, err := ZeroOrMore(p, fn)
	if err != nil {
		return nil, err
	}
	output = append(output, tail...)
	return output, nil
}

// Choice walks through fns and returns the first to succeed.  It
// backtracks the parser cursor before each attempt, and it fails if
// no alternative matches.
func Choice[T any](p Parser, fns []ParserFn[T]) (T, error) {
	var (
		zero        T
		expected    []string
		expectedMap = map[string]struct{}{}
		start       = p.State()
	)
	for _, fn := range fns {
		item, err := fn(p)
		if err == nil {
			return item, nil
		}
		p.Backtrack(start)
		if berr, ok := err.(*backtrackingError); ok {
			if _, ok := expectedMap[berr.Expected]; !ok {
				expectedMap[berr.Expected] = struct{}{}
				expected = append(expected, berr.Expected)
			}
		}
	}
	exp := strings.Join(expected, ", ")
	msg := "expected " + exp + " but got `" + string(p.Peek()) + "`"
	return zero, p.NewError(exp, msg, NewSpan(start.Location, p.Location()))
}

// Optional is a syntax sugar for an ordered choice in which the
// second option is the zero value
func Optional[T any](p Parser, fn ParserFn[T]) (T, error) {
	return Choice(p, []ParserFn[T]{
		fn,
		func(p Parser) (T, error) {
			var zero T
			return zero, nil
		},
	})
}
