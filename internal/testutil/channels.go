// Package testutil holds helpers shared by the asynchronous tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	// DefaultTestTimeout bounds waits on consumer goroutines and servers.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout bounds waits on events that are already queued.
	ShortTestTimeout = 1 * time.Second
)

// WaitForChannel blocks until ch is closed or signalled, failing the test
// with msg after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
	case <-timer.C:
		require.Fail(t, msg, "waited %s", timeout)
	}
}

// Done runs fn in a goroutine and returns a channel closed when it returns.
func Done(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}
