package stage

import "fmt"

// Kind identifies a pipeline stage.
type Kind string

// Pipeline stages in execution order.
const (
	Dense   Kind = "dense"
	Lexical Kind = "lexical"
	Hybrid  Kind = "hybrid"
	// Summary is optional and runs only when requested.
	Summary Kind = "summary"
)

// Order is the fixed execution order of the cascade.
func Order() []Kind {
	return []Kind{Dense, Lexical, Hybrid, Summary}
}

// IsValid checks if the kind is one of the supported stages.
func (k Kind) IsValid() bool {
	return k == Dense || k == Lexical || k == Hybrid || k == Summary
}

// Error attributes a failure to the stage that produced it.
type Error struct {
	Stage Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
