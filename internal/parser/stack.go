package parser

import "github.com/GerHobbelt/tab/internal/ast"

// outStack is the parser's command-emission buffer: it IS the flat command
// stream being built. mark/close implement the detach-a-closure discipline
// of _examples/original_source/tab.cc's Stack::mark / Stack::close: code
// emitted since a mark is cut out of the buffer and captured into a
// detached Closure, rather than left inline, whenever the grammar produces
// a compound command (array/map literal element, comprehension body or
// source, call argument, accumulator body/init/source).
type outStack struct {
	code []ast.Command
}

func (s *outStack) emit(c ast.Command) { s.code = append(s.code, c) }

func (s *outStack) mark() int { return len(s.code) }

// close cuts everything emitted since m into a new Closure whose Object is
// left as strtab.None.
func (s *outStack) close(m int) ast.Closure {
	cut := append([]ast.Command(nil), s.code[m:]...)
	s.code = s.code[:m]
	return ast.Closure{Code: cut}
}
