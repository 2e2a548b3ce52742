package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeTB records failures instead of failing the real test.
type fakeTB struct {
	testing.TB
	mu       sync.Mutex
	failed   bool
	cleanups []func()
}

func (f *fakeTB) Helper()                         {}
func (f *fakeTB) Logf(format string, args ...any) {}
func (f *fakeTB) Cleanup(fn func())               { f.cleanups = append(f.cleanups, fn) }

func (f *fakeTB) Errorf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = true
}

func (f *fakeTB) finish() bool {
	for i := len(f.cleanups) - 1; i >= 0; i-- {
		f.cleanups[i]()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

func TestCheckGoroutinesNoLeak(t *testing.T) {
	tb := &fakeTB{TB: t}
	CheckGoroutines(tb)

	done := make(chan struct{})
	go func() { close(done) }()
	<-done

	assert.False(t, tb.finish())
}

func TestCheckGoroutinesWaitsForExit(t *testing.T) {
	tb := &fakeTB{TB: t}
	CheckGoroutines(tb)

	go time.Sleep(50 * time.Millisecond)

	assert.False(t, tb.finish())
}

func TestCheckGoroutinesDetectsLeak(t *testing.T) {
	tb := &fakeTB{TB: t}
	CheckGoroutines(tb).Within(50 * time.Millisecond)

	release := make(chan struct{})
	go func() { <-release }()

	assert.True(t, tb.finish())
	close(release)
}

func TestCheckGoroutinesAllow(t *testing.T) {
	tb := &fakeTB{TB: t}
	CheckGoroutines(tb).Allow(1).Within(50 * time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	go func() { <-release }()

	assert.False(t, tb.finish())
}
