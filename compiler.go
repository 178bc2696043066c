package com2

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Compile runs the whole pipeline over one com2 source: parse,
// preprocess, transform, then generate both output texts.  Nothing is
// returned on error, so callers never write partial output.
func Compile(source string, opts *Options) (csrc, hsrc string, err error) {
	if opts == nil {
		opts = NewOptions()
	}

	tree, err := NewCom2Parser(source).Parse()
	if err != nil {
		return "", "", err
	}

	tree, err = Preprocess(tree)
	if err != nil {
		return "", "", err
	}

	prog, err := Transform(tree, opts)
	if err != nil {
		return "", "", err
	}
	warnUnknownOverrides(prog, opts)

	csrc, err = NewCodeGen(opts).Start(prog)
	if err != nil {
		return "", "", err
	}
	hsrc, err = NewHeaderGen(opts).Start(prog)
	if err != nil {
		return "", "", err
	}
	return csrc, hsrc, nil
}

// Parse exposes the raw parse tree of a source, primarily for
// inspection from the command line
func Parse(source string) (*Tree, error) {
	tree, err := NewCom2Parser(source).Parse()
	if err != nil {
		return nil, errors.Wrap(err, "parsing input")
	}
	return tree, nil
}

// warnUnknownOverrides logs parameter overrides that name no source
// parameter.  They are ignored for compilation purposes.
func warnUnknownOverrides(prog *Program, opts *Options) {
	known := map[string]struct{}{}
	for _, p := range prog.Params {
		known[p.Name] = struct{}{}
	}
	for name := range opts.Params {
		if _, ok := known[name]; !ok {
			log.Warn().Str("param", name).Msg("override does not match any parameter; ignored")
		}
	}
}
