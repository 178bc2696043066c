package com2

import "fmt"

const eof = -1

// Location points at a single cursor position within the input text.
// Line and Column are 1-indexed and exist purely for error messages;
// Cursor is the rune offset the parser actually works with.
type Location struct {
	Line   int
	Column int
	Cursor int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Span is the region of the input between two locations.  Every parse
// tree node and every diagnostic carries one.
type Span struct {
	Start Location
	End   Location
}

func NewSpan(start, end Location) Span {
	return Span{Start: start, End: end}
}

// String prints the cursor range of the span.  This is what shows up
// in pretty printed trees, so it stays short.
func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start.Cursor, s.End.Cursor)
}

// Pretty prints the line:column form used by error messages.
func (s Span) Pretty() string {
	if s.Start.Line == s.End.Line && s.Start.Column == s.End.Column {
		return s.Start.String()
	}
	return fmt.Sprintf("%s..%s", s.Start.String(), s.End.String())
}
