package errors

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// New creates a new error carrying the caller's file and line number.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("[%s] %s", callerRef(), fmt.Sprintf(format, a...))
}

// Wrapf adds context (including file and line number) to an existing error.
// If the provided error is nil, Wrapf returns nil.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", callerRef(), fmt.Sprintf(format, a...), err)
}

func callerRef() string {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return "???:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}
