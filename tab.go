// Package tab evaluates a single expression in tab's small, statically
// typed, pure functional language for line-oriented text processing.
//
// Grounded on _examples/kolkov-uawk/uawk.go's public API shape
// (Compile/Run/Exec/MustCompile, typed errors at the package boundary).
package tab

import (
	"io"

	"github.com/GerHobbelt/tab/internal/builtins"
	"github.com/GerHobbelt/tab/internal/parser"
	"github.com/GerHobbelt/tab/internal/registry"
	"github.com/GerHobbelt/tab/internal/strtab"
	"github.com/GerHobbelt/tab/internal/typ"
	"github.com/GerHobbelt/tab/internal/typecheck"
)

// Version is the tab version string.
const Version = "0.1.0"

// Run parses, type-checks and executes program once against input,
// returning the program's final value printed as text.
//
//	out, err := tab.Run(`count(@)`, strings.NewReader("a\nb\nc\n"), nil)
func Run(program string, input io.Reader, config *Config) (string, error) {
	prog, err := Compile(program)
	if err != nil {
		return "", err
	}
	return prog.Run(input, config)
}

// Compile parses and type-checks program, returning a Program that can be
// run against any number of inputs.
func Compile(program string) (*Program, error) {
	strs := strtab.New()
	reg := registry.New()
	builtins.Register(reg, strs)

	scatterSrc, gatherSrc, hasScatter := parser.SplitScatterGather(program)

	p := &Program{source: program, hasScatter: hasScatter, reg: reg, strs: strs}

	// The input stream is always exposed as the reserved name @ (aliased
	// $), bound to the whole input as a single lazy Seq(String).
	seqOfString := typecheck.NewEnv(nil)
	atID := strs.Intern("@")
	dollarID := strs.Intern("$")
	seqOfString.Bind(atID, typ.NewSeq(typ.TString))
	seqOfString.Bind(dollarID, typ.NewSeq(typ.TString))

	if hasScatter {
		scatterAST, err := parser.Parse(scatterSrc, strs)
		if err != nil {
			return nil, asSyntaxError(err)
		}
		scatterType, err := typecheck.Check(reg, strs, scatterAST.Code, seqOfString)
		if err != nil {
			return nil, asTypeError(err)
		}
		p.scatterAST = scatterAST
		p.scatterType = scatterType
	}

	gatherAST, err := parser.Parse(gatherSrc, strs)
	if err != nil {
		return nil, asSyntaxError(err)
	}

	gatherEnv := seqOfString
	if hasScatter {
		// The gather half iterates the round-robin-combined output of
		// every scatter worker: Seq(T) where T is each worker's
		// per-element output type — the scatter half's own output
		// sequence's element type if it produced one, or the scatter
		// half's whole result type wrapped as a 1-element sequence
		// otherwise (spec.md §4.7).
		workerElem := p.scatterType
		if p.scatterType.Kind == typ.KindSeq {
			workerElem = *p.scatterType.Elem
		}
		groupType := typ.NewSeq(workerElem)
		gatherEnv = typecheck.NewEnv(nil)
		gatherEnv.Bind(atID, groupType)
		gatherEnv.Bind(dollarID, groupType)
	}
	gatherType, err := typecheck.Check(reg, strs, gatherAST.Code, gatherEnv)
	if err != nil {
		return nil, asTypeError(err)
	}

	p.gatherAST = gatherAST
	p.gatherType = gatherType
	return p, nil
}

func asSyntaxError(err error) error {
	if se, ok := err.(*parser.SyntaxError); ok {
		return &SyntaxError{Pos: se.Pos, Message: se.Message}
	}
	return &SyntaxError{Message: err.Error()}
}

func asTypeError(err error) error {
	if te, ok := err.(*typecheck.TypeError); ok {
		return &TypeError{Message: te.Message}
	}
	return &TypeError{Message: err.Error()}
}

// Exec is a simplified interface for running program, writing its output
// to output directly.
func Exec(program string, input io.Reader, output io.Writer, config *Config) error {
	prog, err := Compile(program)
	if err != nil {
		return err
	}
	if config == nil {
		config = &Config{}
	}
	config.Output = output
	_, err = prog.Run(input, config)
	return err
}

// MustCompile is like Compile but panics if the program cannot be compiled.
func MustCompile(program string) *Program {
	prog, err := Compile(program)
	if err != nil {
		panic(err)
	}
	return prog
}
