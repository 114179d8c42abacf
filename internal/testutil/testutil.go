// Package testutil provides shared helpers for tests that touch the
// network or produce WAV files.
//
// Skip helpers call t.Skip with a human-readable reason when the named
// prerequisite is absent, so integration tests stay runnable offline:
//
//	func TestLiveFetch(t *testing.T) {
//	    testutil.RequireNetwork(t)
//	    ...
//	}
package testutil

import (
	"os"
	"testing"
)

// NetworkEnv enables tests that reach external HRIR databases.
const NetworkEnv = "HRTFLAB_NETWORK_TESTS"

// RequireNetwork skips the test unless NetworkEnv is set to a non-empty value.
func RequireNetwork(tb testing.TB) {
	tb.Helper()

	if os.Getenv(NetworkEnv) == "" {
		tb.Skipf("network tests disabled; set %s=1 to enable", NetworkEnv)
	}
}
