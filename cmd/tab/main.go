// tab evaluates a single expression in tab's small, statically typed,
// pure functional language for line-oriented text processing.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/GerHobbelt/tab"
	"github.com/GerHobbelt/tab/internal/builtins"
)

const usage = `usage: tab [-s] [-t N] [-r SEED] [-d LEVEL] [-h TOPIC] <expression> [input-file]

  -s          deterministic map iteration order (sorted by key on print)
  -t N        use N scatter threads (default 1 = single-threaded)
  -r SEED     seed the RNG
  -d LEVEL    emit parsed/typed command stream to stderr for debugging
  -h TOPIC    print help topic and exit 0
`

var helpTopics = []string{"overview", "syntax", "examples", "threads", "functions"}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	flags := pflag.NewFlagSet("tab", pflag.ContinueOnError)
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }

	sorted := flags.BoolP("sorted", "s", false, "deterministic map iteration order")
	threads := flags.IntP("threads", "t", 1, "number of scatter threads")
	seed := flags.Int64P("seed", "r", 0, "RNG seed")
	debugLevel := flags.IntP("debug", "d", 0, "debug dump level")
	helpTopic := flags.StringP("help-topic", "h", "", "print help topic and exit")

	if err := flags.Parse(argv); err != nil {
		return errorExit(err)
	}

	if *helpTopic != "" {
		printHelp(*helpTopic)
		return 0
	}

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		return 1
	}
	expr := args[0]

	var input *os.File
	if len(args) >= 2 {
		f, err := os.Open(args[1])
		if err != nil {
			return errorExit(&tab.IOError{Message: err.Error()})
		}
		defer f.Close()
		input = f
	} else {
		input = os.Stdin
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if *debugLevel > 0 {
		log.SetLevel(debugLevelToLogrus(*debugLevel))
	}

	prog, err := tab.Compile(expr)
	if err != nil {
		return errorExit(err)
	}

	if *debugLevel > 0 {
		dumpDebug(log, expr, *debugLevel)
	}

	out, err := prog.Run(input, &tab.Config{
		Sorted:     *sorted,
		Threads:    *threads,
		Seed:       *seed,
		DebugLevel: *debugLevel,
		Stderr:     os.Stderr,
	})
	if err != nil {
		return errorExit(err)
	}
	fmt.Print(out)
	return 0
}

// debugLevelToLogrus maps the -d LEVEL flag onto a logrus level: 1 is
// Info, 2+ is Debug. dumpDebug logs the same single summary line at
// either level.
func debugLevelToLogrus(level int) logrus.Level {
	if level >= 2 {
		return logrus.DebugLevel
	}
	return logrus.InfoLevel
}

// dumpDebug logs a structured summary of the compiled program (source
// length and debug level) before execution begins. The command stream
// itself is not logged.
func dumpDebug(log *logrus.Logger, source string, level int) {
	log.WithFields(logrus.Fields{
		"bytes": len(source),
		"level": level,
	}).Info("compiled tab program")
}

// aggregateSuppressed folds per-element suppressed-try diagnostics into
// one error with go-multierror, or returns nil if there are none. Nothing
// in this command collects such diagnostics or calls it.
func aggregateSuppressed(msgs []string) error {
	if len(msgs) == 0 {
		return nil
	}
	var result *multierror.Error
	for _, m := range msgs {
		result = multierror.Append(result, fmt.Errorf("%s", m))
	}
	return result.ErrorOrNil()
}

func errorExit(err error) int {
	msg := fmt.Sprintf("ERROR: %s", err.Error())
	if color.NoColor {
		fmt.Fprintln(os.Stderr, msg)
	} else {
		color.New(color.FgRed).Fprintln(os.Stderr, msg)
	}
	return 1
}

func printHelp(topic string) {
	switch topic {
	case "overview":
		fmt.Println("tab evaluates a single expression over line-oriented input; see -h syntax, -h examples.")
	case "syntax":
		fmt.Println(usage)
	case "examples":
		fmt.Println(`  count(@)                         count input lines
  [ grep(@, "[0-9]+") ]            lines matching a pattern
  zip(count(), @)                  number each line`)
	case "threads":
		fmt.Println("a program containing \"-->\" splits into a scatter half (run per -t worker) and a gather half (run once); see -t N.")
	case "functions":
		names := builtins.Catalogue()
		sort.Strings(names)
		fmt.Println(strings.Join(names, "\n"))
	default:
		names := builtins.Catalogue()
		found := false
		for _, n := range names {
			if n == topic {
				found = true
				break
			}
		}
		if found {
			fmt.Printf("%s: see the function registry contract for its argument/return shape.\n", topic)
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: unknown help topic %q (try one of %s, or a function name)\n",
			topic, strings.Join(helpTopics, ", "))
	}
}
