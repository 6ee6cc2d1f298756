// Package rcutest is the shared concurrency-stress harness used by
// rbtree, judytrie, and rangemap's test suites: a bounded N-reader
// background fan-out run alongside a set of writer functions, guarded by
// a timeout so a regression shows up as a test failure instead of a
// hang — the same livelock guard shape as the teacher's debug_test.go.
package rcutest

import (
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config bounds one stress run.
type Config struct {
	// Readers is how many background goroutines call ReaderFn in a
	// tight loop for the duration of the writers. Defaults to 2.
	Readers int
	// Timeout fails the test instead of hanging if the writers never
	// finish. Defaults to 10s.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Readers <= 0 {
		c.Readers = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Run starts cfg.Readers goroutines looping readerFn while writers run
// concurrently via an errgroup, then stops the readers once every writer
// has returned. It fails t if any writer returns an error or the whole
// run exceeds cfg.Timeout.
func Run(t *testing.T, cfg Config, readerFn func(), writers ...func() error) {
	t.Helper()
	cfg = cfg.withDefaults()

	stop := make(chan struct{})
	var wgReaders sync.WaitGroup
	for i := 0; i < cfg.Readers; i++ {
		wgReaders.Add(1)
		go func() {
			defer wgReaders.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				readerFn()
			}
		}()
	}

	g := new(errgroup.Group)
	for _, w := range writers {
		g.Go(w)
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		close(stop)
		wgReaders.Wait()
		if err != nil {
			t.Fatalf("rcutest: writer failed: %v", err)
		}
	case <-time.After(cfg.Timeout):
		close(stop)
		t.Fatal("rcutest: timed out; possible deadlock or livelock")
	}
}

// Quiesce runs validate once readers and writers have stopped and fails
// t if it reports a broken invariant.
func Quiesce(t *testing.T, validate func() error) {
	t.Helper()
	if err := validate(); err != nil {
		t.Fatalf("rcutest: post-stress validation failed: %v", err)
	}
}
