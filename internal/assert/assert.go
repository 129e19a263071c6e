package assert

import (
	"fmt"
	"log"
)

// StrictMode controls whether a failed check panics (true) or returns an
// error (false). Production runs with StrictMode = false so a bad predicate
// degrades into an error the caller can handle.
var StrictMode = false

// SuppressLogs disables the log line emitted on a failed check. Tests that
// exercise failure paths set this to keep output clean.
var SuppressLogs = false

// Check evaluates a predicate. On failure it logs (unless suppressed),
// panics in StrictMode, and otherwise returns a descriptive error.
func Check(cond bool, format string, args ...interface{}) error {
	if cond {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if !SuppressLogs {
		log.Printf("ASSERT FAILED: %s", msg)
	}
	if StrictMode {
		panic("assertion failed: " + msg)
	}
	return fmt.Errorf("assertion failed: %s", msg)
}

// NotNil checks that a value is not nil.
func NotNil(v interface{}, name string) error {
	return Check(v != nil, "%s must not be nil", name)
}

// InRange checks that n lies in [lo, hi].
func InRange(n, lo, hi int, name string) error {
	return Check(n >= lo && n <= hi, "%s out of range: %d not in [%d, %d]", name, n, lo, hi)
}
