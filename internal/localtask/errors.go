package localtask

import "fmt"

// AdapterError is returned for every local-CLI failure mode: binary
// missing (Fatal), non-zero exit (Detail carries captured stderr), or
// a parse error over malformed plain-text output (spec.md §4.3).
type AdapterError struct {
	Op     string
	Fatal  bool
	Detail string
	Cause  error
}

func (e *AdapterError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("local adapter %s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("local adapter %s failed", e.Op)
}

func (e *AdapterError) Unwrap() error { return e.Cause }
