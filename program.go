package tab

import (
	"bufio"
	"bytes"
	"io"

	"github.com/GerHobbelt/tab/internal/ast"
	"github.com/GerHobbelt/tab/internal/eval"
	"github.com/GerHobbelt/tab/internal/printer"
	"github.com/GerHobbelt/tab/internal/registry"
	"github.com/GerHobbelt/tab/internal/scatter"
	"github.com/GerHobbelt/tab/internal/strtab"
	"github.com/GerHobbelt/tab/internal/typ"
	"github.com/GerHobbelt/tab/internal/value"
)

// Program represents a compiled tab expression ready for execution. It is
// safe for concurrent use; each call to Run creates an independent
// execution context, so the same Program can be reused across inputs.
type Program struct {
	source string

	hasScatter  bool
	scatterAST  *ast.Program
	scatterType typ.Type

	gatherAST  *ast.Program
	gatherType typ.Type

	reg  *registry.Registry
	strs *strtab.Table
}

// Source returns the original tab source.
func (p *Program) Source() string { return p.source }

// Run executes the compiled program once against input (the whole input
// is exposed to the expression as a single lazy Seq(String) bound to @),
// printing its single result value per internal/printer's rules.
//
// If config.Output is set, the result is written there and the returned
// string is empty; otherwise the result is returned as a string.
func (p *Program) Run(input io.Reader, config *Config) (string, error) {
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	pull := func() (value.Value, bool) {
		if !scanner.Scan() {
			return nil, false
		}
		return value.AtomValue{Atom: value.Str(scanner.Text())}, true
	}

	var result value.Value
	var err error
	if p.hasScatter && config.Threads > 1 {
		result, err = p.runScattered(pull, config)
	} else {
		result, err = p.runSequential(pull, config)
	}
	if err != nil {
		return "", err
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return "", &IOError{Message: scanErr.Error()}
	}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	pr := printer.New(w)
	pr.Sorted = config.Sorted
	if perr := pr.Print(result); perr != nil {
		return "", &IOError{Message: perr.Error()}
	}
	if ferr := w.Flush(); ferr != nil {
		return "", &IOError{Message: ferr.Error()}
	}

	if config.Output != nil {
		if _, werr := config.Output.Write(buf.Bytes()); werr != nil {
			return "", &IOError{Message: werr.Error()}
		}
		return "", nil
	}
	return buf.String(), nil
}

// runSequential binds @/$ to the whole input as one Seq(String) and
// evaluates the gather half (which is the whole program, when the source
// contains no "-->") exactly once. When the source contains a split, the
// scatter half runs first, once, over the whole input, and the gather
// half then sees its output with the same shape one scatter worker emits.
func (p *Program) runSequential(pull func() (value.Value, bool), config *Config) (value.Value, error) {
	r := eval.NewRuntime(p.reg, p.strs)
	lineSeq := &value.FuncSeq{Elem: typ.TString, Pull: pull}
	atID := p.strs.Intern("@")
	dollarID := p.strs.Intern("$")
	bindAtDollar(r, atID, dollarID, lineSeq)

	if p.hasScatter {
		sv, err := eval.Eval(r, p.scatterAST.Code)
		if err != nil {
			return nil, asRuntimeError(err)
		}
		out := &value.SliceSeq{Elem: p.scatterType}
		if p.scatterType.Kind == typ.KindSeq {
			out.Elem = *p.scatterType.Elem
			emitEach(sv, func(v value.Value) { out.Items = append(out.Items, v) })
		} else {
			out.Items = []value.Value{sv}
		}
		r = eval.NewRuntime(p.reg, p.strs)
		bindAtDollar(r, atID, dollarID, out)
	}

	v, err := eval.Eval(r, p.gatherAST.Code)
	if err != nil {
		return nil, asRuntimeError(err)
	}
	return v, nil
}

// runScattered splits the shared input across config.Threads scatter
// workers (each running its own compiled copy of the scatter half), then
// evaluates the gather half once over the round-robin-multiplexed output
// of all workers, per spec.md §4.7/§4.9's threaded scatter/gather model.
func (p *Program) runScattered(pull func() (value.Value, bool), config *Config) (value.Value, error) {
	src := scatter.NewLineSource(func() (string, bool) {
		v, ok := pull()
		if !ok {
			return "", false
		}
		return v.(value.AtomValue).Atom.S, true
	})

	elemType := p.scatterType
	wrapAsSeq := p.scatterType.Kind != typ.KindSeq
	if !wrapAsSeq {
		elemType = *p.scatterType.Elem
	}

	workerErrs := make(chan error, config.Threads)
	worker := func(src *scatter.LineSource, emit func(value.Value)) {
		r := eval.NewRuntime(p.reg, p.strs)
		lineSeq := &value.FuncSeq{Elem: typ.TString, Pull: func() (value.Value, bool) {
			line, ok := src.Next()
			if !ok {
				return nil, false
			}
			return value.AtomValue{Atom: value.Str(line)}, true
		}}
		atID := p.strs.Intern("@")
		dollarID := p.strs.Intern("$")
		bindAtDollar(r, atID, dollarID, lineSeq)

		v, err := eval.Eval(r, p.scatterAST.Code)
		if err != nil {
			workerErrs <- err
			return
		}
		if wrapAsSeq {
			emit(v)
			return
		}
		// The scatter half's static type says Seq(T), but comprehension
		// results (internal/eval.evalArr) materialize eagerly as
		// *value.ArrayAtom/*value.ArrayObject rather than a true
		// value.Seq (the same runtime-vs-static-type gap internal/
		// builtins' seqPuller/AddPoly "count" handle by accepting
		// either shape); emitEach does the same here so a worker whose
		// scatter half is a bare comprehension still emits one value
		// per element instead of silently emitting nothing.
		emitEach(v, emit)
	}

	group := scatter.NewGroup(config.Threads, src, worker)
	groupSeq := scatter.NewSeq(group, elemType)

	r := eval.NewRuntime(p.reg, p.strs)
	atID := p.strs.Intern("@")
	dollarID := p.strs.Intern("$")
	bindAtDollar(r, atID, dollarID, groupSeq)

	v, err := eval.Eval(r, p.gatherAST.Code)
	group.Wait()
	if err != nil {
		return nil, asRuntimeError(err)
	}
	select {
	case werr := <-workerErrs:
		return nil, asRuntimeError(werr)
	default:
	}
	return v, nil
}

// emitEach calls emit once per element of v, regardless of whether v is a
// true value.Seq, an *value.ArrayAtom, or an *value.ArrayObject (see the
// call site in runScattered for why a statically Seq-typed scatter result
// can arrive as any of the three at runtime).
func emitEach(v value.Value, emit func(value.Value)) {
	switch c := v.(type) {
	case value.Seq:
		for {
			item, ok := c.Next()
			if !ok {
				return
			}
			emit(item)
		}
	case *value.ArrayAtom:
		for i := 0; i < c.Len(); i++ {
			emit(value.AtomValue{Atom: c.At(i)})
		}
	case *value.ArrayObject:
		for _, item := range c.Items {
			emit(item)
		}
	}
}

func bindAtDollar(r *eval.Runtime, atID, dollarID strtab.ID, v value.Value) {
	r.BindID(atID, v)
	r.BindID(dollarID, v)
}

func asRuntimeError(err error) error {
	if re, ok := err.(*eval.RuntimeError); ok {
		return &RuntimeError{Message: re.Message}
	}
	return &RuntimeError{Message: err.Error()}
}
