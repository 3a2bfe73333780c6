package testutil

import "testing"

// SetupTestEnv sets environment variables for the duration of a test.
//
// An empty value stands for "unset" in every lookup approtate does, so
// tests can blank out inherited variables such as XDG_DATA_HOME. The
// original environment is restored when the test completes. Tests calling
// this must not use t.Parallel.
//
// Example usage:
//
//	SetupTestEnv(t, map[string]string{
//	    "APPROTATE_DATA_DIR": t.TempDir(),
//	    "XDG_DATA_HOME":      "",
//	})
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	for key, value := range vars {
		t.Setenv(key, value)
	}
}
