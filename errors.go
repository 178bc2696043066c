package com2

import "fmt"

// ParsingError is the error thrown when the parser can't finish successfuly
type ParsingError struct {
	Message    string
	Expected   string
	Production string
	Span       Span
}

// Error returns the human readable representation of a parsing error
func (e ParsingError) Error() string {
	return fmt.Sprintf("parse: %s @ %s", e.Message, e.Span.Pretty())
}

// backtrackingError is an internal error type that is captured and
// discarded by the Choice operator
type backtrackingError struct {
	Message    string
	Expected   string
	Production string
	Span       Span
}

func (e backtrackingError) Error() string {
	return fmt.Sprintf("%s @ %s", e.Message, e.Span.Pretty())
}

// PreprocessError is raised while unrolling for loops over state
// blocks, e.g. when a loop bound doesn't evaluate to an integer
type PreprocessError struct {
	Message string
	Span    Span
}

func (e PreprocessError) Error() string {
	return fmt.Sprintf("preprocess: %s @ %s", e.Message, e.Span.Pretty())
}

// TransformError is raised while typing the raw parse tree, e.g. on
// duplicate state labels or malformed types
type TransformError struct {
	Message string
	Span    Span
}

func (e TransformError) Error() string {
	return fmt.Sprintf("transform: %s @ %s", e.Message, e.Span.Pretty())
}

// CodegenError is raised while emitting C, e.g. on a transition that
// can never be taken or a state that references an unknown label
type CodegenError struct {
	Message string
}

func (e CodegenError) Error() string {
	return fmt.Sprintf("codegen: %s", e.Message)
}
