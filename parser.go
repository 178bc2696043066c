package com2

import (
	"fmt"
	"strings"
)

// Com2Parser reads com2 protocol sources into the raw parse tree.
// Each Parse method corresponds to one grammar production, written
// out as a `// GR:` comment right above it.
type Com2Parser struct {
	BaseParser
}

func NewCom2Parser(input string) *Com2Parser {
	p := &Com2Parser{}
	p.SetInput(input)
	return p
}

// Parse kicks off parsing the input string and generates a raw tree
// describing the protocol
func (p *Com2Parser) Parse() (*Tree, error) {
	tree, err := p.ParseProgram()
	if err != nil {
		return nil, p.surfaceError(err)
	}
	return tree, nil
}

// GR: Program <- Section* EndOfFile
func (p *Com2Parser) ParseProgram() (*Tree, error) {
	p.pushProduction("Program")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	sections, err := ZeroOrMore(p, func(Parser) (ParseValue, error) {
		return p.ParseSection()
	})
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if c := p.Peek(); c != eof {
		loc := p.Location()
		return nil, p.NewError("section", fmt.Sprintf("unexpected `%c`", c), NewSpan(loc, loc))
	}
	return NewTree("program", sections, NewSpan(start, p.Location())), nil
}

// GR: Section <- ('parameters' / 'variables' / 'shared_functions' /
// GR:             'left_functions' / 'right_functions') '{' ... '}'
func (p *Com2Parser) ParseSection() (ParseValue, error) {
	return Choice(p, []ParserFn[ParseValue]{
		func(Parser) (ParseValue, error) { return p.parseDeclSection("parameters", p.parseParamDecl) },
		func(Parser) (ParseValue, error) { return p.parseDeclSection("variables", p.parseVarDecl) },
		func(Parser) (ParseValue, error) { return p.parseFunctionSection("shared_functions") },
		func(Parser) (ParseValue, error) { return p.parseFunctionSection("left_functions") },
		func(Parser) (ParseValue, error) { return p.parseFunctionSection("right_functions") },
	})
}

func (p *Com2Parser) parseDeclSection(name string, item func() (ParseValue, error)) (ParseValue, error) {
	p.pushProduction(name)
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	if err := p.expectKeyword(name); err != nil {
		return nil, err
	}
	decls, err := p.parseBraced(func() ([]ParseValue, error) {
		return ZeroOrMore(p, func(Parser) (ParseValue, error) { return item() })
	})
	if err != nil {
		return nil, err
	}
	return NewTree(name, decls, NewSpan(start, p.Location())), nil
}

func (p *Com2Parser) parseFunctionSection(name string) (ParseValue, error) {
	p.pushProduction(name)
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	if err := p.expectKeyword(name); err != nil {
		return nil, err
	}
	fns, err := p.parseBraced(func() ([]ParseValue, error) {
		return ZeroOrMore(p, func(Parser) (ParseValue, error) { return p.ParseFunction() })
	})
	if err != nil {
		return nil, err
	}
	return NewTree(name, fns, NewSpan(start, p.Location())), nil
}

// GR: ParamDecl <- Type NAME ('=' Expr)? ';'
func (p *Com2Parser) parseParamDecl() (ParseValue, error) {
	p.pushProduction("ParamDecl")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	ty, err := p.ParseType()
	if err != nil {
		return nil, err
	}
	name, err := p.parseNameToken()
	if err != nil {
		return nil, err
	}
	children := []ParseValue{ty, name}
	p.ParseSpacing()
	state := p.State()
	if err := p.expectOp("=", "=>"); err == nil {
		init, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		children = append(children, init)
	} else {
		p.Backtrack(state)
	}
	p.ParseSpacing()
	if _, err := p.ExpectRune(';'); err != nil {
		return nil, err
	}
	return NewTree("param_decl", children, NewSpan(start, p.Location())), nil
}

// GR: VarDecl <- Type NAME ';'
func (p *Com2Parser) parseVarDecl() (ParseValue, error) {
	p.pushProduction("VarDecl")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	ty, err := p.ParseType()
	if err != nil {
		return nil, err
	}
	name, err := p.parseNameToken()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if _, err := p.ExpectRune(';'); err != nil {
		return nil, err
	}
	return NewTree("var_decl", []ParseValue{ty, name}, NewSpan(start, p.Location())), nil
}

// GR: Type <- ('bit' / 'byte' / 'integer' / 'wire') ('[' INT ']')*
func (p *Com2Parser) ParseType() (*Tree, error) {
	p.pushProduction("Type")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	base, err := Choice(p, []ParserFn[*Token]{
		p.keywordTokenFn("bit"),
		p.keywordTokenFn("byte"),
		p.keywordTokenFn("integer"),
		p.keywordTokenFn("wire"),
	})
	if err != nil {
		return nil, err
	}
	children := []ParseValue{base}
	dims, err := ZeroOrMore(p, func(Parser) (*Token, error) {
		p.ParseSpacing()
		if _, err := p.ExpectRune('['); err != nil {
			return nil, err
		}
		dim, err := p.parseIntegerToken()
		if err != nil {
			return nil, err
		}
		p.ParseSpacing()
		if _, err := p.ExpectRune(']'); err != nil {
			return nil, err
		}
		return dim, nil
	})
	if err != nil {
		return nil, err
	}
	for _, d := range dims {
		children = append(children, d)
	}
	return NewTree("type", children, NewSpan(start, p.Location())), nil
}

// GR: Function <- 'function' NAME '(' ArgList? ')' '{' BodyItem* '}'
func (p *Com2Parser) ParseFunction() (ParseValue, error) {
	p.pushProduction("Function")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	if err := p.expectKeyword("function"); err != nil {
		return nil, err
	}
	name, err := p.parseNameToken()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if _, err := p.ExpectRune('('); err != nil {
		return nil, err
	}
	argsStart := p.Location()
	args, err := Optional(p, func(Parser) ([]ParseValue, error) { return p.parseArgList() })
	if err != nil {
		return nil, err
	}
	argList := NewTree("arg_list", args, NewSpan(argsStart, p.Location()))
	p.ParseSpacing()
	if _, err := p.ExpectRune(')'); err != nil {
		return nil, err
	}
	bodyStart := p.Location()
	items, err := p.parseBraced(func() ([]ParseValue, error) {
		return ZeroOrMore(p, func(Parser) (ParseValue, error) { return p.ParseBodyItem() })
	})
	if err != nil {
		return nil, err
	}
	body := NewTree("body", items, NewSpan(bodyStart, p.Location()))
	children := []ParseValue{name, argList, body}
	return NewTree("function", children, NewSpan(start, p.Location())), nil
}

// GR: ArgList <- Arg (',' Arg)*
func (p *Com2Parser) parseArgList() ([]ParseValue, error) {
	head, err := p.parseArg()
	if err != nil {
		return nil, err
	}
	tail, err := ZeroOrMore(p, func(Parser) (ParseValue, error) {
		p.ParseSpacing()
		if _, err := p.ExpectRune(','); err != nil {
			return nil, err
		}
		return p.parseArg()
	})
	if err != nil {
		return nil, err
	}
	return append([]ParseValue{head}, tail...), nil
}

// GR: Arg <- ('input' / 'output') Type NAME
func (p *Com2Parser) parseArg() (ParseValue, error) {
	p.pushProduction("Arg")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	io, err := Choice(p, []ParserFn[*Token]{
		p.keywordTokenFn("input"),
		p.keywordTokenFn("output"),
	})
	if err != nil {
		return nil, err
	}
	ty, err := p.ParseType()
	if err != nil {
		return nil, err
	}
	name, err := p.parseNameToken()
	if err != nil {
		return nil, err
	}
	return NewTree("arg", []ParseValue{io, ty, name}, NewSpan(start, p.Location())), nil
}

// GR: BodyItem <- ForLoop / State / StatePath / Assignment
func (p *Com2Parser) ParseBodyItem() (ParseValue, error) {
	return Choice(p, []ParserFn[ParseValue]{
		func(Parser) (ParseValue, error) { return p.ParseForLoop() },
		func(Parser) (ParseValue, error) { return p.ParseState() },
		func(Parser) (ParseValue, error) { return p.parseStatePath() },
		func(Parser) (ParseValue, error) { return p.parseAssignment() },
	})
}

// GR: Assignment <- LValue '=' Expr ';'
func (p *Com2Parser) parseAssignment() (ParseValue, error) {
	p.pushProduction("Assignment")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	lv, err := p.parseLValue()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if err := p.expectOp("=", "=>"); err != nil {
		return nil, err
	}
	expr, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if _, err := p.ExpectRune(';'); err != nil {
		return nil, err
	}
	return NewTree("assignment", []ParseValue{lv, expr}, NewSpan(start, p.Location())), nil
}

// GR: StatePath <- 'states' LABEL ('->' LABEL)? ';'
//
// A single label is the end of the path, with no start; the emitted
// body is that one state alone.
func (p *Com2Parser) parseStatePath() (ParseValue, error) {
	p.pushProduction("StatePath")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	if err := p.expectKeyword("states"); err != nil {
		return nil, err
	}
	first, err := p.parseLabelToken()
	if err != nil {
		return nil, err
	}
	children := []ParseValue{first}
	p.ParseSpacing()
	state := p.State()
	if err := p.expectOp("->", ""); err == nil {
		second, err := p.parseLabelToken()
		if err != nil {
			return nil, err
		}
		children = append(children, second)
	} else {
		p.Backtrack(state)
	}
	p.ParseSpacing()
	if _, err := p.ExpectRune(';'); err != nil {
		return nil, err
	}
	return NewTree("state_path", children, NewSpan(start, p.Location())), nil
}

// GR: ForLoop <- 'for' NAME 'in' Bound '..' Bound '{' (ForLoop / State)* '}'
// GR: Bound   <- INT / NAME
//
// Bounds admit names so that a nested loop can range over an outer
// counter; the preprocessor requires them to be integers by the time
// the loop is unrolled.
func (p *Com2Parser) ParseForLoop() (ParseValue, error) {
	p.pushProduction("ForLoop")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	if err := p.expectKeyword("for"); err != nil {
		return nil, err
	}
	counter, err := p.parseNameToken()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("in"); err != nil {
		return nil, err
	}
	lo, err := p.parseBound()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if _, err := p.ExpectLiteral(".."); err != nil {
		return nil, err
	}
	hi, err := p.parseBound()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	listStart := p.Location()
	items, err := p.parseBraced(func() ([]ParseValue, error) {
		return ZeroOrMore(p, func(Parser) (ParseValue, error) {
			return Choice(p, []ParserFn[ParseValue]{
				func(Parser) (ParseValue, error) { return p.ParseForLoop() },
				func(Parser) (ParseValue, error) { return p.ParseState() },
			})
		})
	})
	if err != nil {
		return nil, err
	}
	states := NewTree("state_list", items, NewSpan(listStart, p.Location()))
	children := []ParseValue{counter, lo, hi, states}
	return NewTree("for_loop", children, NewSpan(start, p.Location())), nil
}

func (p *Com2Parser) parseBound() (ParseValue, error) {
	return Choice(p, []ParserFn[ParseValue]{
		func(Parser) (ParseValue, error) { return p.parseIntegerToken() },
		func(Parser) (ParseValue, error) { return p.parseNameToken() },
	})
}

// GR: State <- 'state' LABEL? (':' CondList)? '{' Action* '}' Transition*
func (p *Com2Parser) ParseState() (ParseValue, error) {
	p.pushProduction("State")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	if err := p.expectKeyword("state"); err != nil {
		return nil, err
	}

	labelStart := p.Location()
	var labelChildren []ParseValue
	state := p.State()
	if label, err := p.parseLabelToken(); err == nil {
		labelChildren = append(labelChildren, label)
	} else {
		p.Backtrack(state)
	}
	labelTree := NewTree("state_label", labelChildren, NewSpan(labelStart, p.Location()))

	condStart := p.Location()
	var conds []ParseValue
	p.ParseSpacing()
	state = p.State()
	if _, err := p.ExpectRune(':'); err == nil {
		var err error
		conds, err = p.parseCondList()
		if err != nil {
			return nil, err
		}
	} else {
		p.Backtrack(state)
	}
	condTree := NewTree("cond_list", conds, NewSpan(condStart, p.Location()))

	actionsStart := p.Location()
	actions, err := p.parseBraced(func() ([]ParseValue, error) {
		return ZeroOrMore(p, func(Parser) (ParseValue, error) { return p.ParseAction() })
	})
	if err != nil {
		return nil, err
	}
	actionsTree := NewTree("actions", actions, NewSpan(actionsStart, p.Location()))

	transStart := p.Location()
	trans, err := ZeroOrMore(p, func(Parser) (ParseValue, error) { return p.parseTransition() })
	if err != nil {
		return nil, err
	}
	transTree := NewTree("transitions", trans, NewSpan(transStart, p.Location()))

	children := []ParseValue{labelTree, condTree, actionsTree, transTree}
	return NewTree("state", children, NewSpan(start, p.Location())), nil
}

// GR: CondList <- Cond (',' Cond)*
// GR: Cond     <- Duration / NAME
func (p *Com2Parser) parseCondList() ([]ParseValue, error) {
	head, err := p.parseCond()
	if err != nil {
		return nil, err
	}
	tail, err := ZeroOrMore(p, func(Parser) (ParseValue, error) {
		p.ParseSpacing()
		if _, err := p.ExpectRune(','); err != nil {
			return nil, err
		}
		return p.parseCond()
	})
	if err != nil {
		return nil, err
	}
	return append([]ParseValue{head}, tail...), nil
}

func (p *Com2Parser) parseCond() (ParseValue, error) {
	return Choice(p, []ParserFn[ParseValue]{
		func(Parser) (ParseValue, error) { return p.parseDuration() },
		func(Parser) (ParseValue, error) { return p.parseNameToken() },
	})
}

// GR: Duration <- Expr ('s' / 'ms' / 'us' / 'ns')
func (p *Com2Parser) parseDuration() (ParseValue, error) {
	p.pushProduction("Duration")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	val, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	unitStart := p.Location()
	unit, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	switch unit {
	case "s", "ms", "us", "ns":
	default:
		span := NewSpan(unitStart, p.Location())
		return nil, p.NewError("unit", fmt.Sprintf("unknown duration unit `%s`", unit), span)
	}
	unitTok := NewToken(TokenUnit, unit, NewSpan(unitStart, p.Location()))
	return NewTree("duration", []ParseValue{val, unitTok}, NewSpan(start, p.Location())), nil
}

// GR: Action <- Assignment
// GR:         / NAME '->' LValue ';'     # TRANSFER, driven by LEFT
// GR:         / NAME '=>' Expr ';'       # SEND, driven by LEFT
// GR:         / LValue '<-' NAME ';'     # TRANSFER, driven by RIGHT
// GR:         / Primary '<=' NAME ';'    # SEND, driven by RIGHT
//
// The arrow points the way the data travels: the wire sits at the
// tail of a rightward arrow and at the head of a leftward one.
func (p *Com2Parser) ParseAction() (ParseValue, error) {
	return Choice(p, []ParserFn[ParseValue]{
		func(Parser) (ParseValue, error) { return p.parseAssignment() },
		func(Parser) (ParseValue, error) { return p.parseTransferToRight() },
		func(Parser) (ParseValue, error) { return p.parseSendToRight() },
		func(Parser) (ParseValue, error) { return p.parseTransferToLeft() },
		func(Parser) (ParseValue, error) { return p.parseSendToLeft() },
	})
}

func (p *Com2Parser) parseTransferToRight() (ParseValue, error) {
	p.pushProduction("TransferToRight")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	wire, err := p.parseNameToken()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if err := p.expectOp("->", ""); err != nil {
		return nil, err
	}
	val, err := p.parseLValue()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return NewTree("transfer_to_right", []ParseValue{wire, val}, NewSpan(start, p.Location())), nil
}

func (p *Com2Parser) parseSendToRight() (ParseValue, error) {
	p.pushProduction("SendToRight")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	wire, err := p.parseNameToken()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if err := p.expectOp("=>", ""); err != nil {
		return nil, err
	}
	val, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return NewTree("send_to_right", []ParseValue{wire, val}, NewSpan(start, p.Location())), nil
}

func (p *Com2Parser) parseTransferToLeft() (ParseValue, error) {
	p.pushProduction("TransferToLeft")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	val, err := p.parseLValue()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if err := p.expectOp("<-", "="); err != nil {
		return nil, err
	}
	wire, err := p.parseNameToken()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return NewTree("transfer_to_left", []ParseValue{val, wire}, NewSpan(start, p.Location())), nil
}

func (p *Com2Parser) parseSendToLeft() (ParseValue, error) {
	p.pushProduction("SendToLeft")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	val, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if err := p.expectOp("<=", ""); err != nil {
		return nil, err
	}
	wire, err := p.parseNameToken()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return NewTree("send_to_left", []ParseValue{val, wire}, NewSpan(start, p.Location())), nil
}

// GR: Transition <- 'if' '(' Expr ')' 'goto' LABEL ';'
// GR:             / 'goto' LABEL ';'
func (p *Com2Parser) parseTransition() (ParseValue, error) {
	p.pushProduction("Transition")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	predStart := p.Location()
	var predChildren []ParseValue
	state := p.State()
	if err := p.expectKeyword("if"); err == nil {
		p.ParseSpacing()
		if _, err := p.ExpectRune('('); err != nil {
			return nil, err
		}
		pred, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		p.ParseSpacing()
		if _, err := p.ExpectRune(')'); err != nil {
			return nil, err
		}
		predChildren = append(predChildren, pred)
	} else {
		p.Backtrack(state)
	}
	pred := NewTree("predicate", predChildren, NewSpan(predStart, p.Location()))
	if err := p.expectKeyword("goto"); err != nil {
		return nil, err
	}
	target, err := p.parseLabelToken()
	if err != nil {
		return nil, err
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return NewTree("transition", []ParseValue{pred, target}, NewSpan(start, p.Location())), nil
}

// GR: LValue <- NAME ('[' Expr ']')*
func (p *Com2Parser) parseLValue() (ParseValue, error) {
	p.pushProduction("LValue")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	name, err := p.parseNameToken()
	if err != nil {
		return nil, err
	}
	children := []ParseValue{name}
	dims, err := ZeroOrMore(p, func(Parser) (ParseValue, error) { return p.parseSubscriptIndex() })
	if err != nil {
		return nil, err
	}
	children = append(children, dims...)
	return NewTree("lvalue", children, NewSpan(start, p.Location())), nil
}

func (p *Com2Parser) parseSubscriptIndex() (ParseValue, error) {
	p.ParseSpacing()
	if _, err := p.ExpectRune('['); err != nil {
		return nil, err
	}
	idx, err := p.ParseExpr()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if _, err := p.ExpectRune(']'); err != nil {
		return nil, err
	}
	return idx, nil
}

// binaryOps is ordered longest first so that maximal munch falls out
// of plain ordered choice
var binaryOps = []string{
	"||", "&&", "==", "!=", "<=", ">=", "<<", ">>",
	"<", ">", "+", "-", "*", "/", "%", "&", "|", "^",
}

// GR: Expr    <- Unary (BinOp Unary)*
// GR: Unary   <- ('!' / '-')* Primary
// GR: Primary <- NAME ('[' Expr ']')* / INT / '(' Expr ')'
//
// The expression tree stays flat: a sequence of tokens plus subscript
// nodes, later flattened to C text by straight concatenation.
func (p *Com2Parser) ParseExpr() (*Tree, error) {
	p.pushProduction("Expr")
	defer p.popProduction()

	p.ParseSpacing()
	start := p.Location()
	var children []ParseValue
	if err := p.parseUnary(&children); err != nil {
		return nil, err
	}
	for {
		state := p.State()
		p.ParseSpacing()
		opStart := p.Location()
		op, err := p.parseBinOp()
		if err != nil {
			p.Backtrack(state)
			break
		}
		opTok := NewToken(TokenOp, op, NewSpan(opStart, p.Location()))
		more := []ParseValue{opTok}
		if err := p.parseUnary(&more); err != nil {
			p.Backtrack(state)
			break
		}
		children = append(children, more...)
	}
	return NewTree("expr", children, NewSpan(start, p.Location())), nil
}

func (p *Com2Parser) parseBinOp() (string, error) {
	for _, op := range binaryOps {
		if _, err := p.ExpectLiteral(op); err == nil {
			return op, nil
		}
	}
	loc := p.Location()
	return "", p.NewError("operator", "expected binary operator", NewSpan(loc, loc))
}

func (p *Com2Parser) parseUnary(children *[]ParseValue) error {
	p.ParseSpacing()
	for {
		c := p.Peek()
		if c != '!' && c != '-' {
			break
		}
		start := p.Location()
		p.Any()
		*children = append(*children, NewToken(TokenOp, string(c), NewSpan(start, p.Location())))
		p.ParseSpacing()
	}
	prim, err := p.parsePrimary()
	if err != nil {
		return err
	}
	*children = append(*children, prim...)
	return nil
}

func (p *Com2Parser) parsePrimary() ([]ParseValue, error) {
	p.ParseSpacing()
	start := p.Location()
	switch c := p.Peek(); {
	case c == '(':
		p.Any()
		open := NewToken(TokenOp, "(", NewSpan(start, p.Location()))
		inner, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		p.ParseSpacing()
		closeStart := p.Location()
		if _, err := p.ExpectRune(')'); err != nil {
			return nil, err
		}
		closeTok := NewToken(TokenOp, ")", NewSpan(closeStart, p.Location()))
		out := []ParseValue{open}
		out = append(out, inner.Children...)
		out = append(out, closeTok)
		return out, nil
	case c >= '0' && c <= '9':
		tok, err := p.parseIntegerToken()
		if err != nil {
			return nil, err
		}
		return []ParseValue{tok}, nil
	default:
		name, err := p.parseNameToken()
		if err != nil {
			return nil, err
		}
		dims, err := ZeroOrMore(p, func(Parser) (ParseValue, error) { return p.parseSubscriptIndex() })
		if err != nil {
			return nil, err
		}
		if len(dims) == 0 {
			return []ParseValue{name}, nil
		}
		children := append([]ParseValue{name}, dims...)
		sub := NewTree("subscript", children, NewSpan(start, p.Location()))
		return []ParseValue{sub}, nil
	}
}

// parsePrimaryExpr wraps a lone Primary into an expr node.  Used on
// the left of `<=`, where a greedy Expr would swallow the arrow as a
// comparison.
func (p *Com2Parser) parsePrimaryExpr() (*Tree, error) {
	p.ParseSpacing()
	start := p.Location()
	prim, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return NewTree("expr", prim, NewSpan(start, p.Location())), nil
}

// Lexical helpers

// ParseSpacing consumes whitespace and `#` line comments
func (p *Com2Parser) ParseSpacing() {
	for {
		c := p.Peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.Any()
		case c == '#':
			for {
				c := p.Peek()
				if c == eof || c == '\n' {
					break
				}
				p.Any()
			}
		default:
			return
		}
	}
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *Com2Parser) parseIdentifier() (string, error) {
	p.ParseSpacing()
	start := p.Location()
	c := p.Peek()
	if !isIdentStart(c) {
		msg := fmt.Sprintf("expected identifier but got `%c`", c)
		return "", p.NewError("identifier", msg, NewSpan(start, p.Location()))
	}
	var s strings.Builder
	for isIdentPart(p.Peek()) {
		c, _ := p.Any()
		s.WriteRune(c)
	}
	return s.String(), nil
}

func (p *Com2Parser) parseNameToken() (*Token, error) {
	p.ParseSpacing()
	start := p.Location()
	id, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	return NewToken(TokenName, id, NewSpan(start, p.Location())), nil
}

func (p *Com2Parser) parseLabelToken() (*Token, error) {
	p.ParseSpacing()
	start := p.Location()
	id, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	return NewToken(TokenLabel, id, NewSpan(start, p.Location())), nil
}

func (p *Com2Parser) parseIntegerToken() (*Token, error) {
	p.ParseSpacing()
	start := p.Location()
	c := p.Peek()
	if c < '0' || c > '9' {
		msg := fmt.Sprintf("expected integer but got `%c`", c)
		return nil, p.NewError("integer", msg, NewSpan(start, p.Location()))
	}
	var s strings.Builder
	for {
		c := p.Peek()
		if c < '0' || c > '9' {
			break
		}
		p.Any()
		s.WriteRune(c)
	}
	return NewToken(TokenNumber, s.String(), NewSpan(start, p.Location())), nil
}

// expectKeyword matches a literal that must not run into a longer
// identifier, so `state` doesn't match the head of `states`
func (p *Com2Parser) expectKeyword(kw string) error {
	p.ParseSpacing()
	state := p.State()
	if _, err := p.ExpectLiteral(kw); err != nil {
		return err
	}
	if isIdentPart(p.Peek()) {
		span := NewSpan(state.Location, p.Location())
		err := p.NewError(fmt.Sprintf("`%s`", kw), fmt.Sprintf("missing `%s`", kw), span)
		p.Backtrack(state)
		return err
	}
	return nil
}

func (p *Com2Parser) keywordTokenFn(kw string) ParserFn[*Token] {
	return func(Parser) (*Token, error) {
		p.ParseSpacing()
		start := p.Location()
		if err := p.expectKeyword(kw); err != nil {
			return nil, err
		}
		return NewToken(TokenName, kw, NewSpan(start, p.Location())), nil
	}
}

// expectOp matches an operator literal that must not run into a
// longer operator, e.g. `=` must not match the head of `=>`
func (p *Com2Parser) expectOp(op string, notFollowedBy string) error {
	p.ParseSpacing()
	state := p.State()
	if _, err := p.ExpectLiteral(op); err != nil {
		return err
	}
	if strings.ContainsRune(notFollowedBy, p.Peek()) {
		span := NewSpan(state.Location, p.Location())
		err := p.NewError(fmt.Sprintf("`%s`", op), fmt.Sprintf("missing `%s`", op), span)
		p.Backtrack(state)
		return err
	}
	return nil
}

// parseBraced parses `'{' <items> '}'` around the given item parser
func (p *Com2Parser) parseBraced(items func() ([]ParseValue, error)) ([]ParseValue, error) {
	p.ParseSpacing()
	if _, err := p.ExpectRune('{'); err != nil {
		return nil, err
	}
	out, err := items()
	if err != nil {
		return nil, err
	}
	p.ParseSpacing()
	if _, err := p.ExpectRune('}'); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Com2Parser) expectSemicolon() error {
	p.ParseSpacing()
	_, err := p.ExpectRune(';')
	return err
}
