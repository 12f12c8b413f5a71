package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger logs to stdout for the duration of the test. Output is moved to
// stderr afterwards since pumps may outlive the test that started them.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "[test] ", log.LstdFlags|log.Lmsgprefix)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
