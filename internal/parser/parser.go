// Package parser implements tab's recursive-descent parser. It emits a
// flat ast.Command stream with nested ast.Closures rather than a
// conventional expression tree, using the mark/close discipline of
// _examples/original_source/tab.cc's Stack, restructured into Go using the
// one-function-per-grammar-rule style of
// _examples/kolkov-uawk/internal/parser/parser.go.
package parser

import (
	"fmt"
	"strings"

	"github.com/GerHobbelt/tab/internal/ast"
	"github.com/GerHobbelt/tab/internal/lexer"
	"github.com/GerHobbelt/tab/internal/strtab"
	"github.com/GerHobbelt/tab/internal/token"
	"github.com/GerHobbelt/tab/internal/value"
)

// SplitScatterGather finds the first top-level "-->" in src (not inside a
// string literal) and splits the program into a scatter half and a gather
// half. When absent, the whole program is the gather half and scatter is
// empty; the gather half then implicitly operates on "@" per spec.md §4.7.
//
// Grounded on _examples/original_source/threaded.h's run_threaded, which
// locates "-->" via a plain substring search; we refine that to skip
// occurrences inside quoted string literals, which the C++ prototype's
// naive search does not guard against (recorded in SPEC_FULL.md §10).
func SplitScatterGather(src string) (scatter, gather string, hasScatter bool) {
	inStr := byte(0)
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inStr != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == inStr {
				inStr = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inStr = c
		case '-':
			if strings.HasPrefix(src[i:], "-->") {
				return src[:i], src[i+3:], true
			}
		}
	}
	return "", src, false
}

// Parser turns a token stream into an ast.Program.
type Parser struct {
	lex  *lexer.Lexer
	tok  lexer.Tok
	strs *strtab.Table
	out  outStack
}

// Parse parses src (already split into its scatter or gather half, or a
// program with no scatter/gather split at all) against a shared string
// table, so that names are interned consistently whether the program
// has one half or two.
func Parse(src string, strs *strtab.Table) (*ast.Program, error) {
	p := &Parser{lex: lexer.New(src, ""), strs: strs}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.parseExpr(); err != nil {
		return nil, err
	}
	if p.tok.Type != token.EOF {
		return nil, p.errf("unexpected trailing input at %s", p.tok.Type)
	}
	return &ast.Program{Code: p.out.code, Strs: strs}, nil
}

func (p *Parser) next() error {
	t, err := p.lex.Scan()
	if err != nil {
		return &SyntaxError{Message: err.Error()}
	}
	p.tok = t
	return nil
}

func (p *Parser) errf(format string, args ...interface{}) error {
	return &SyntaxError{Pos: p.tok.Pos.String(), Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) expect(t token.Token) error {
	if p.tok.Type != t {
		return p.errf("expected %s, got %s", t, p.tok.Type)
	}
	return p.next()
}

// parseExpr is the grammar's entry point: expr ::= assign (',' assign)*,
// also accepting ';' as an assign separator (spec.md §4.3). Each assign in
// the sequence runs for its side effect (VAW binds a name) or its value;
// only the last one's value survives on the command stream as the whole
// expr's result (earlier assigns that bind a name pop cleanly, per VAW's
// semantics; earlier ones that don't assign just leave stray values for
// the caller's stack-collapse rule to fold into a tuple).
func (p *Parser) parseExpr() error {
	if err := p.parseAssign(); err != nil {
		return err
	}
	for p.tok.Type == token.COMMA || p.tok.Type == token.SEMI {
		if err := p.next(); err != nil {
			return err
		}
		if err := p.parseAssign(); err != nil {
			return err
		}
	}
	return nil
}

// parseAssign implements assign ::= name '=' atom | atom. Since a bare
// name is itself a valid atom (a variable reference), disambiguating
// requires one token of lookahead past the name for '='; when that lookahead
// fails we restore the lexer to before the name and fall back to parseAtom.
func (p *Parser) parseAssign() error {
	if p.tok.Type == token.IDENT {
		name := p.tok.Value
		savedLex := *p.lex
		savedTok := p.tok
		if err := p.next(); err != nil {
			return err
		}
		if p.tok.Type == token.ASSIGN {
			if err := p.next(); err != nil {
				return err
			}
			if err := p.parseAtom(); err != nil {
				return err
			}
			p.out.emit(ast.Command{Op: ast.VAW, Name: p.strs.Intern(name)})
			return nil
		}
		*p.lex = savedLex
		p.tok = savedTok
	}
	return p.parseAtom()
}

// parseAtom is the precedence chain below assign/expr: atom ::= regex, and
// everything regex recurses through down to bottom (spec.md §4.3).
func (p *Parser) parseAtom() error { return p.parseBitOr() }

func (p *Parser) parseBitOr() error {
	if err := p.parseBitXor(); err != nil {
		return err
	}
	for p.tok.Type == token.PIPE {
		if err := p.next(); err != nil {
			return err
		}
		if err := p.parseBitXor(); err != nil {
			return err
		}
		p.out.emit(ast.Command{Op: ast.OR})
	}
	return nil
}

func (p *Parser) parseBitXor() error {
	if err := p.parseBitAnd(); err != nil {
		return err
	}
	for p.tok.Type == token.CARET {
		if err := p.next(); err != nil {
			return err
		}
		if err := p.parseBitAnd(); err != nil {
			return err
		}
		p.out.emit(ast.Command{Op: ast.XOR})
	}
	return nil
}

func (p *Parser) parseBitAnd() error {
	if err := p.parseRegexOrIndex(); err != nil {
		return err
	}
	for p.tok.Type == token.AMP {
		if err := p.next(); err != nil {
			return err
		}
		if err := p.parseRegexOrIndex(); err != nil {
			return err
		}
		p.out.emit(ast.Command{Op: ast.AND})
	}
	return nil
}

// parseRegexOrIndex handles tab's `a ~ b` operator. Grammar-level
// disambiguation (per spec.md §9's open question) happens here: when the
// right-hand side is syntactically a bare string literal, this is a REGEX
// match; otherwise it's a generic IDX/index-by-value operation. This is
// exactly the distinction _examples/original_source/tab.cc's
// x_expr_regex parser rule draws, by looking at whether the parsed RHS is
// a string literal.
func (p *Parser) parseRegexOrIndex() error {
	if err := p.parseAdd(); err != nil {
		return err
	}
	for p.tok.Type == token.TILDE {
		if err := p.next(); err != nil {
			return err
		}
		if p.tok.Type == token.STRING {
			pat := p.tok.Value
			if err := p.next(); err != nil {
				return err
			}
			p.out.emit(ast.Command{Op: ast.REGEX, Arg: value.Str(pat)})
			continue
		}
		m := p.out.mark()
		if err := p.parseExpr(); err != nil {
			return err
		}
		idx := p.out.close(m)
		p.out.emit(ast.Command{Op: ast.IDX, Closures: []ast.Closure{idx}})
	}
	return nil
}

func (p *Parser) parseAdd() error {
	if err := p.parseMul(); err != nil {
		return err
	}
	for p.tok.Type == token.PLUS || p.tok.Type == token.MINUS {
		op := ast.ADD
		if p.tok.Type == token.MINUS {
			op = ast.SUB
		}
		if err := p.next(); err != nil {
			return err
		}
		if err := p.parseMul(); err != nil {
			return err
		}
		p.out.emit(ast.Command{Op: op})
	}
	return nil
}

func (p *Parser) parseMul() error {
	if err := p.parseUnary(); err != nil {
		return err
	}
	for p.tok.Type == token.STAR || p.tok.Type == token.SLASH || p.tok.Type == token.PERCENT {
		var op ast.Op
		switch p.tok.Type {
		case token.STAR:
			op = ast.MUL
		case token.SLASH:
			op = ast.DIV
		default:
			op = ast.MOD
		}
		if err := p.next(); err != nil {
			return err
		}
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.out.emit(ast.Command{Op: op})
	}
	return nil
}

// parseUnary handles prefix `!` and `~` (grammar rule `neg ::= '!' atom |
// '~' atom | idx`, spec.md §4.3/§4.6 — leading `-` is never a prefix
// operator here, it belongs only to numeric-literal lexing per §4.3) and
// tab's sugar prefixes `:` (flatten) and `?` (filter), each desugared to a
// FUN call over a single closure argument.
func (p *Parser) parseUnary() error {
	switch p.tok.Type {
	case token.BANG:
		if err := p.next(); err != nil {
			return err
		}
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.out.emit(ast.Command{Op: ast.NOT})
		return nil
	case token.TILDE:
		if err := p.next(); err != nil {
			return err
		}
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.out.emit(ast.Command{Op: ast.NEG})
		return nil
	case token.COLON:
		if err := p.next(); err != nil {
			return err
		}
		return p.wrapCall("flatten")
	case token.QUESTION:
		if err := p.next(); err != nil {
			return err
		}
		return p.wrapCall("filter")
	case token.MINUS:
		// spec.md §4.3: a leading '-' is part of numeric-literal lexing
		// ("a leading '-' ... forces Int"), not a unary operator — there
		// is no NEG-from-'-' form in the grammar. Only a literal may
		// follow.
		return p.parseNegativeLiteral()
	default:
		return p.parseExp()
	}
}

// parseNegativeLiteral handles the '-' sign on a numeric literal (spec.md
// §4.3): the literal's value is negated directly and, for what would
// otherwise default to UInt, the result is forced to Int, matching "a
// leading '-' ... forces Int".
func (p *Parser) parseNegativeLiteral() error {
	if err := p.next(); err != nil { // consume '-'
		return err
	}
	switch p.tok.Type {
	case token.INT:
		n, err := lexer.ParseIntLiteral(p.tok.Value)
		if err != nil {
			return p.errf("invalid integer literal: %v", err)
		}
		p.out.emit(ast.Command{Op: ast.VAL, Arg: value.Int(-n)})
		return p.next()
	case token.UINTLIT:
		n, err := lexer.ParseUIntLiteral(p.tok.Value)
		if err != nil {
			return p.errf("invalid unsigned literal: %v", err)
		}
		p.out.emit(ast.Command{Op: ast.VAL, Arg: value.Int(-int64(n))})
		return p.next()
	case token.REAL:
		f, err := lexer.ParseRealLiteral(p.tok.Value)
		if err != nil {
			return p.errf("invalid real literal: %v", err)
		}
		p.out.emit(ast.Command{Op: ast.VAL, Arg: value.Real(-f)})
		return p.next()
	default:
		return p.errf("'-' may only prefix a numeric literal")
	}
}

// wrapCall desugars a prefix-sugar operator into name(<one closure over the
// parsed unary expression>).
func (p *Parser) wrapCall(name string) error {
	m := p.out.mark()
	if err := p.parseUnary(); err != nil {
		return err
	}
	closure := p.out.close(m)
	p.out.emit(ast.Command{Op: ast.FUN, Name: p.strs.Intern(name), Closures: []ast.Closure{closure}})
	return nil
}

func (p *Parser) parseExp() error {
	if err := p.parsePostfix(); err != nil {
		return err
	}
	if p.tok.Type == token.STARSTAR {
		if err := p.next(); err != nil {
			return err
		}
		// right-associative
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.out.emit(ast.Command{Op: ast.EXP})
	}
	return nil
}

// parsePostfix handles bracket indexing a[b]. The dot-call sugar (`f.x`,
// spec.md §4.3) is handled directly in parsePrimary's IDENT case instead:
// the grammar defines it as an alternate funcall spelling keyed on `name`
// being a literal identifier (`funcall ::= name '(' expr? ')' -- also
// sugar: name '.' atom`), not a generic postfix applicable to any receiver.
func (p *Parser) parsePostfix() error {
	if err := p.parsePrimary(); err != nil {
		return err
	}
	for {
		switch p.tok.Type {
		case token.LBRACK:
			if err := p.next(); err != nil {
				return err
			}
			mi := p.out.mark()
			if err := p.parseExpr(); err != nil {
				return err
			}
			idx := p.out.close(mi)
			if err := p.expect(token.RBRACK); err != nil {
				return err
			}
			p.out.emit(ast.Command{Op: ast.IDX, Closures: []ast.Closure{idx}})
		default:
			return nil
		}
	}
}

// parseArgList parses a comma-separated argument list up to the closing
// RPAREN (already consumed the opening paren), returning each argument as
// its own detached Closure.
func (p *Parser) parseArgList() ([]ast.Closure, error) {
	var closures []ast.Closure
	if p.tok.Type == token.RPAREN {
		return closures, p.next()
	}
	for {
		m := p.out.mark()
		if err := p.parseAssign(); err != nil {
			return nil, err
		}
		closures = append(closures, p.out.close(m))
		if p.tok.Type != token.COMMA {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	return closures, p.expect(token.RPAREN)
}

func (p *Parser) parsePrimary() error {
	switch p.tok.Type {
	case token.INT:
		n, err := lexer.ParseIntLiteral(p.tok.Value)
		if err != nil {
			return p.errf("invalid integer literal: %v", err)
		}
		p.out.emit(ast.Command{Op: ast.VAL, Arg: value.UInt(uint64(n))})
		return p.next()
	case token.UINTLIT:
		n, err := lexer.ParseUIntLiteral(p.tok.Value)
		if err != nil {
			return p.errf("invalid unsigned literal: %v", err)
		}
		p.out.emit(ast.Command{Op: ast.VAL, Arg: value.UInt(n)})
		return p.next()
	case token.REAL:
		f, err := lexer.ParseRealLiteral(p.tok.Value)
		if err != nil {
			return p.errf("invalid real literal: %v", err)
		}
		p.out.emit(ast.Command{Op: ast.VAL, Arg: value.Real(f)})
		return p.next()
	case token.STRING:
		p.out.emit(ast.Command{Op: ast.VAL, Arg: value.Str(p.tok.Value)})
		return p.next()
	case token.AT:
		p.out.emit(ast.Command{Op: ast.VAR, Name: p.strs.Intern("@")})
		return p.next()
	case token.DOLLAR:
		p.out.emit(ast.Command{Op: ast.VAR, Name: p.strs.Intern("$")})
		return p.next()
	case token.LPAREN:
		if err := p.next(); err != nil {
			return err
		}
		if err := p.parseAtom(); err != nil {
			return err
		}
		return p.expect(token.RPAREN)
	case token.LBRACK:
		return p.parseArrayLiteral(false)
	case token.LBRACKDOT:
		return p.parseArrayLiteral(true)
	case token.LBRACE:
		return p.parseMapLiteral()
	case token.LSHIFT:
		return p.parseAccumulator()
	case token.IDENT:
		name := p.tok.Value
		if err := p.next(); err != nil {
			return err
		}
		if p.tok.Type == token.LPAREN {
			if err := p.next(); err != nil {
				return err
			}
			closures, err := p.parseArgList()
			if err != nil {
				return err
			}
			p.out.emit(ast.Command{Op: ast.FUN, Name: p.strs.Intern(name), Closures: closures})
			return nil
		}
		if p.tok.Type == token.DOT {
			// sugar: name '.' atom  =>  name(atom) (spec.md §4.3, "f.x → f(x)")
			if err := p.next(); err != nil {
				return err
			}
			m := p.out.mark()
			if err := p.parseAtom(); err != nil {
				return err
			}
			arg := p.out.close(m)
			p.out.emit(ast.Command{Op: ast.FUN, Name: p.strs.Intern(name), Closures: []ast.Closure{arg}})
			return nil
		}
		p.out.emit(ast.Command{Op: ast.VAR, Name: p.strs.Intern(name)})
		return nil
	default:
		return p.errf("unexpected token %s", p.tok.Type)
	}
}

// parseArrayLiteral parses both array literals `[e1, e2, ...]` and array
// comprehensions `[body : source]`, mirroring
// _examples/original_source/tab.cc's infer_arr_generator, which handles
// exactly this two-shape ambiguity by checking for a colon. iarray selects
// the `[.` `.]` delimiter variant (spec.md §4.3), tagging the emitted ARR
// command so the printer renders it `;`-separated (spec.md §6) instead of
// one element per line; the grammar and closure shapes are otherwise
// identical to the plain `[` `]` form.
func (p *Parser) parseArrayLiteral(iarray bool) error {
	closeTok := token.RBRACK
	if iarray {
		closeTok = token.RBRACKDOT
	}
	if err := p.next(); err != nil { // consume '[' or '[.'
		return err
	}
	var closures []ast.Closure
	if p.tok.Type == closeTok {
		p.out.emit(ast.Command{Op: ast.ARR, Closures: closures, IArray: iarray})
		return p.next()
	}
	m := p.out.mark()
	if err := p.parseAssign(); err != nil {
		return err
	}
	body := p.out.close(m)
	if p.tok.Type == token.COLON {
		if err := p.next(); err != nil {
			return err
		}
		m2 := p.out.mark()
		if err := p.parseExpr(); err != nil {
			return err
		}
		source := p.out.close(m2)
		closures = []ast.Closure{body, source}
		p.out.emit(ast.Command{Op: ast.ARR, Closures: closures, IsComprehension: true, IArray: iarray})
		return p.expect(closeTok)
	}
	closures = append(closures, body)
	for p.tok.Type == token.COMMA {
		if err := p.next(); err != nil {
			return err
		}
		me := p.out.mark()
		if err := p.parseAssign(); err != nil {
			return err
		}
		closures = append(closures, p.out.close(me))
	}
	p.out.emit(ast.Command{Op: ast.ARR, Closures: closures, IArray: iarray})
	return p.expect(closeTok)
}

// parseMapLiteral parses `{ key ('->' val)? (':' expr)? }`, a single
// key/value template rather than a comma list: with no source arm it's a
// one-entry map literal, with a source arm it's a map comprehension driven
// by that source (spec.md §4.3). Omitting '-> val' defaults the value to
// UInt(1), mirroring _examples/original_source/tab.cc's x_map default.
func (p *Parser) parseMapLiteral() error {
	if err := p.next(); err != nil { // consume '{'
		return err
	}
	mk := p.out.mark()
	if err := p.parseAtom(); err != nil {
		return err
	}
	key := p.out.close(mk)

	var val ast.Closure
	if p.tok.Type == token.RARROW {
		if err := p.next(); err != nil {
			return err
		}
		mv := p.out.mark()
		if err := p.parseAtom(); err != nil {
			return err
		}
		val = p.out.close(mv)
	} else {
		val = ast.Closure{Code: []ast.Command{{Op: ast.VAL, Arg: value.UInt(1)}}}
	}

	closures := []ast.Closure{key, val}
	if p.tok.Type == token.COLON {
		if err := p.next(); err != nil {
			return err
		}
		ms := p.out.mark()
		if err := p.parseExpr(); err != nil {
			return err
		}
		closures = append(closures, p.out.close(ms))
	}
	p.out.emit(ast.Command{Op: ast.MAP, Closures: closures})
	return p.expect(token.RBRACE)
}

// parseAccumulator parses the recursive accumulator form
// `<< body : init, source >>`. Grounded on spec.md §4.6's recursive
// accumulator and the '<<'/'>>' bracket sugar noted in SPEC_FULL.md.
func (p *Parser) parseAccumulator() error {
	if err := p.next(); err != nil { // consume '<<'
		return err
	}
	mb := p.out.mark()
	if err := p.parseAtom(); err != nil {
		return err
	}
	body := p.out.close(mb)
	if err := p.expect(token.COLON); err != nil {
		return err
	}
	mi := p.out.mark()
	if err := p.parseAtom(); err != nil {
		return err
	}
	init := p.out.close(mi)
	if err := p.expect(token.COMMA); err != nil {
		return err
	}
	ms := p.out.mark()
	if err := p.parseExpr(); err != nil {
		return err
	}
	source := p.out.close(ms)
	p.out.emit(ast.Command{Op: ast.ACCUM, Closures: []ast.Closure{body, init, source}})
	return p.expect(token.RSHIFT)
}
