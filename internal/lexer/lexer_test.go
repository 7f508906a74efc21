package lexer

import (
	"testing"

	"github.com/GerHobbelt/tab/internal/token"
)

func scanAll(t *testing.T, src string) []Tok {
	t.Helper()
	l := New(src, "")
	var toks []Tok
	for {
		tok, err := l.Scan()
		if err != nil {
			t.Fatalf("Scan returned an error: %v", err)
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func TestScanOperatorsAndPunct(t *testing.T) {
	toks := scanAll(t, `@ --> $ -> ; << >> **`)
	want := []token.Token{
		token.AT, token.ARROW, token.DOLLAR, token.RARROW, token.SEMI, token.LSHIFT, token.RSHIFT, token.STARSTAR, token.EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Fatalf("token %d = %s, want %s", i, toks[i].Type, w)
		}
	}
}

func TestScanIArrayBrackets(t *testing.T) {
	toks := scanAll(t, `[. 1, 2 .]`)
	want := []token.Token{
		token.LBRACKDOT, token.INT, token.COMMA, token.INT, token.RBRACKDOT, token.EOF,
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(toks), len(want), toks)
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Fatalf("token %d = %s, want %s", i, toks[i].Type, w)
		}
	}
}

func TestScanLoneAngleBracketErrors(t *testing.T) {
	if _, err := New("<", "").Scan(); err == nil {
		t.Fatalf("a lone < should error: only << survives as a token")
	}
	if _, err := New(">", "").Scan(); err == nil {
		t.Fatalf("a lone > should error: only >> survives as a token")
	}
}

func TestScanIdentAndNumbers(t *testing.T) {
	toks := scanAll(t, `foo_1 123 0x1F 1.5 2e10 5u`)
	want := []token.Token{token.IDENT, token.INT, token.INT, token.REAL, token.REAL, token.UINTLIT, token.EOF}
	for i, w := range want {
		if toks[i].Type != w {
			t.Fatalf("token %d = %s, want %s", i, toks[i].Type, w)
		}
	}
	if toks[0].Value != "foo_1" {
		t.Fatalf("ident value = %q, want foo_1", toks[0].Value)
	}
}

func TestScanStringEscapes(t *testing.T) {
	toks := scanAll(t, `"a\nb\t\"c\""`)
	if toks[0].Type != token.STRING {
		t.Fatalf("expected a STRING token, got %s", toks[0].Type)
	}
	if want := "a\nb\t\"c\""; toks[0].Value != want {
		t.Fatalf("decoded string = %q, want %q", toks[0].Value, want)
	}
}

func TestScanUnterminatedStringErrors(t *testing.T) {
	l := New(`"no end`, "")
	if _, err := l.Scan(); err == nil {
		t.Fatalf("Scan should error on an unterminated string literal")
	}
}

func TestScanUnexpectedCharacterErrors(t *testing.T) {
	l := New("`", "")
	if _, err := l.Scan(); err == nil {
		t.Fatalf("Scan should error on a character outside tab's token set")
	}
}

func TestParseLiterals(t *testing.T) {
	if v, err := ParseIntLiteral("0x1F"); err != nil || v != 31 {
		t.Fatalf("ParseIntLiteral(0x1F) = %d, %v, want 31, nil", v, err)
	}
	if v, err := ParseUIntLiteral("42"); err != nil || v != 42 {
		t.Fatalf("ParseUIntLiteral(42) = %d, %v, want 42, nil", v, err)
	}
	if v, err := ParseRealLiteral("1.5"); err != nil || v != 1.5 {
		t.Fatalf("ParseRealLiteral(1.5) = %v, %v, want 1.5, nil", v, err)
	}
}

func TestEOnlyConsumedWithExponentDigits(t *testing.T) {
	toks := scanAll(t, `1e 2`)
	if toks[0].Type != token.INT || toks[0].Value != "1" {
		t.Fatalf("1e followed by non-digit should lex as INT \"1\", got %s %q", toks[0].Type, toks[0].Value)
	}
}
