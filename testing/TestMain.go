// Package testing is blank-imported by tests that must never start the
// binaries' network side effects.
package testing

import (
	"os"
	stdtesting "testing"
)

var testEnv = map[string]string{
	"POS_TEST_MODE":  "1",
	"API_BASE_URL":   "http://127.0.0.1:0",
	"GOTENBERG_URL":  "http://127.0.0.1:0",
	"SESSION_SECRET": "test-session-secret",
	"CSRF_SECRET":    "test-csrf-secret",
}

func init() {
	for key, value := range testEnv {
		if key == "POS_TEST_MODE" || os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs the package tests with the test environment in place.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
