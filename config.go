package tab

import "io"

// Config holds configuration options for running a compiled Program,
// mirroring the `-s`, `-t`, `-r` and `-d` command-line flags.
type Config struct {
	// Sorted requests deterministic, sorted iteration of map keys and any
	// other iteration order the language leaves otherwise unspecified
	// (the `-s` flag).
	Sorted bool

	// Threads is the number of scatter workers to run when the program
	// contains a top-level "-->" split (the `-t N` flag). Values <= 1
	// run the program sequentially with no worker pool at all, whether
	// or not the program happens to contain a split; a split program then
	// runs its scatter half once over the whole input and its gather half
	// over that output.
	Threads int

	// Seed holds the `-r SEED` flag. Run does not read it, and no builtin
	// registered by this module is randomized, so it has no effect on
	// output.
	Seed int64

	// DebugLevel holds the `-d LEVEL` flag. Run does not read it; the tab
	// command logs a one-line summary of the compiled program (source
	// length and level) to its own stderr when it is above zero. The
	// command stream itself is not dumped.
	DebugLevel int

	// Output is the writer results are printed to. If nil, output is
	// captured and returned from Run.
	Output io.Writer

	// Stderr is not written by Run; errors are returned to the caller.
	Stderr io.Writer
}

// applyDefaults fills in default values for unset Config fields.
func (c *Config) applyDefaults() {
	if c.Threads <= 0 {
		c.Threads = 1
	}
}
