// Package utils holds test helpers shared across packages.
package utils

import (
	"runtime"
	"strings"
	"testing"
	"time"
)

// LeakCheck tracks goroutines started during a test. Create it with
// CheckGoroutines before the code under test runs.
type LeakCheck struct {
	tb       testing.TB
	baseline int
	allowed  int
	deadline time.Duration
}

// CheckGoroutines records the current goroutine count and, when the test
// finishes, fails it if more goroutines are still running than at the
// start. Goroutines get until the deadline (one second by default) to exit.
func CheckGoroutines(tb testing.TB) *LeakCheck {
	tb.Helper()
	c := &LeakCheck{
		tb:       tb,
		baseline: runtime.NumGoroutine(),
		deadline: time.Second,
	}
	tb.Cleanup(c.Verify)
	return c
}

// Allow tolerates n goroutines above the baseline.
func (c *LeakCheck) Allow(n int) *LeakCheck {
	c.allowed = n
	return c
}

// Within changes how long goroutines get to exit.
func (c *LeakCheck) Within(d time.Duration) *LeakCheck {
	c.deadline = d
	return c
}

// Verify polls until the goroutine count is back within bounds and reports
// the surviving stacks if it never gets there. It runs automatically at
// cleanup but may be called earlier.
func (c *LeakCheck) Verify() {
	c.tb.Helper()

	limit := c.baseline + c.allowed
	stop := time.Now().Add(c.deadline)
	n := runtime.NumGoroutine()
	for n > limit && time.Now().Before(stop) {
		time.Sleep(10 * time.Millisecond)
		n = runtime.NumGoroutine()
	}
	if n <= limit {
		return
	}

	c.tb.Errorf("goroutine leak: %d running, %d at start (%d allowed)", n, c.baseline, c.allowed)
	c.tb.Logf("goroutines:\n%s", stacks())
	// Prevent the cleanup from reporting the same leak twice.
	c.baseline = n
}

func stacks() string {
	buf := make([]byte, 1<<20)
	buf = buf[:runtime.Stack(buf, true)]

	var kept []string
	for _, g := range strings.Split(string(buf), "\n\n") {
		// Parent tests waiting on subtests.
		if strings.Contains(g, "testing.(*T).Run(") {
			continue
		}
		kept = append(kept, g)
	}
	return strings.Join(kept, "\n\n")
}
