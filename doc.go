// Package tab evaluates expressions in tab, a small, statically typed,
// pure functional expression language for line-oriented text processing.
//
// tab has no statements, no loops, and no mutation: a program is a single
// expression, evaluated once with the implicit variable @ bound to the whole
// input as a lazy sequence of lines, and its result is printed. Arrays, maps, sequences and comprehensions over them give the
// language its expressive power without reintroducing control flow.
//
// # Quick Start
//
// For simple one-off execution:
//
//	output, err := tab.Run(`count(@)`, strings.NewReader("a\nb\nc\n"), nil)
//
// With configuration:
//
//	output, err := tab.Run(program, input, &tab.Config{
//	    Sorted:  true,
//	    Threads: 4,
//	})
//
// # Compiled Programs
//
// For repeated execution of the same program:
//
//	prog, err := tab.Compile(`grep(@, "error")`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, file := range files {
//	    output, err := prog.Run(file, nil)
//	    // ...
//	}
//
// # Scatter/Gather
//
// A program containing a top-level "-->" splits into a scatter half (run
// per worker against a partition of the input) and a gather half (run once
// against the round-robin combined output of every worker); see Config.Threads.
//
// # Error Handling
//
// Errors are returned as specific types for detailed handling:
//   - [SyntaxError]: malformed source
//   - [TypeError]: a static type mismatch caught before any line is read
//   - [RuntimeError]: a failure while evaluating a particular input
//   - [IOError]: a failure reading the input stream
//
// # Thread Safety
//
// Compiled [Program] objects are safe for concurrent use. Each call to
// [Program.Run] creates an independent execution context.
package tab
