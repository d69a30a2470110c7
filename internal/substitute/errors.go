package substitute

import "fmt"

// PatternError reports a pattern that failed to compile or a substitution
// pass that failed at runtime
type PatternError struct {
	Pattern string
	Flags   string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern /%s/%s: %v", e.Pattern, e.Flags, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}
