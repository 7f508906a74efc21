package parser

import "fmt"

// SyntaxError is returned for any lexical or grammatical failure. Grounded
// on _examples/kolkov-uawk/errors.go's small typed-error-with-Error()
// pattern, renamed to the kind spec.md §7 names.
type SyntaxError struct {
	Pos     string
	Message string
}

func (e *SyntaxError) Error() string {
	if e.Pos != "" {
		return fmt.Sprintf("%s: %s", e.Pos, e.Message)
	}
	return e.Message
}
