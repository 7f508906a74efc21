// Package regexec wraps github.com/coregx/coregex for tab's REGEX opcode
// and the grep builtin, with a cached compiled-regex
// table and an Aho-Corasick literal-prefilter fast path for calls whose
// pattern is a fixed string rather than a true regular expression.
//
// Grounded directly on _examples/kolkov-uawk/internal/runtime/regex.go's
// Regex/RegexCache wrapper (cached *coregex.Regexp, FIFO eviction via
// sync.Map + an order slice) and on its sibling prefilter.go's literal-
// extraction idea, generalized here to a full Aho-Corasick automaton
// (github.com/coregx/ahocorasick, uawk's own indirect dependency) for
// multi-literal prefiltering across repeated grep calls over many lines.
package regexec

import (
	"sync"

	"github.com/coregx/ahocorasick"
	"github.com/coregx/coregex"
)

// Regex wraps a compiled pattern with leftmost-longest semantics, the
// convention spec.md's REGEX opcode and grep-family builtins rely on.
type Regex struct {
	pattern string
	re      *coregex.Regexp
	ac      *ahocorasick.Matcher // literal prefilter, non-nil when the pattern is a fixed string
}

// Compile compiles pattern, building an Aho-Corasick literal prefilter when
// the pattern contains no regex metacharacters (common in grep(@, "lit")
// calls over large line sequences).
func Compile(pattern string) (*Regex, error) {
	re, err := coregex.Compile(pattern)
	if err != nil {
		return nil, err
	}
	re.Longest()

	r := &Regex{pattern: pattern, re: re}
	if isLiteral(pattern) {
		r.ac = ahocorasick.NewMatcher([]string{pattern})
	}
	return r, nil
}

func isLiteral(pattern string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '.', '*', '+', '?', '(', ')', '[', ']', '{', '}', '|', '^', '$', '\\':
			return false
		}
	}
	return len(pattern) > 0
}

func (r *Regex) Pattern() string { return r.pattern }

// MatchString reports whether s contains a match, using the Aho-Corasick
// literal prefilter when available (a negative from the automaton is
// conclusive; a positive still confirms against the full regex so that
// leftmost-longest match semantics stay authoritative).
func (r *Regex) MatchString(s string) bool {
	if r.ac != nil {
		if !r.ac.Contains(s) {
			return false
		}
	}
	return r.re.MatchString(s)
}

func (r *Regex) FindStringIndex(s string) []int { return r.re.FindStringIndex(s) }

func (r *Regex) FindAllStringIndex(s string, n int) [][]int { return r.re.FindAllStringIndex(s, n) }

func (r *Regex) ReplaceAllString(s, repl string) string { return r.re.ReplaceAllString(s, repl) }

func (r *Regex) Split(s string, n int) []string { return r.re.Split(s, n) }

// Cache provides thread-safe compiled-regex caching with FIFO eviction,
// so that a pattern appearing inside a scatter worker's hot per-line loop
// is compiled once per cache (and a cache may be shared by every worker),
// not once per line.
type Cache struct {
	cache   sync.Map
	orderMu sync.Mutex
	order   []string
	maxSize int
}

func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 128
	}
	return &Cache{maxSize: maxSize}
}

func (c *Cache) Get(pattern string) (*Regex, error) {
	if re, ok := c.cache.Load(pattern); ok {
		return re.(*Regex), nil
	}
	re, err := Compile(pattern)
	if err != nil {
		return nil, err
	}
	if existing, loaded := c.cache.LoadOrStore(pattern, re); loaded {
		return existing.(*Regex), nil
	}
	c.orderMu.Lock()
	c.order = append(c.order, pattern)
	for len(c.order) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.cache.Delete(oldest)
	}
	c.orderMu.Unlock()
	return re, nil
}
