// Package polling implements the strategies that keep the local replica current after
// bootstrap: fixed-interval polling and long-polling with adaptive throttling.
package polling

import (
	"context"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/subsystems"
)

// How long Close waits for background work to wind down before abandoning it, when no
// grace period was configured.
const defaultShutdownGrace = 5 * time.Second

// FixedRateStrategy polls every namespace at a fixed interval. On each tick, all
// namespaces that have a cursor are fetched concurrently, and the tick completes only
// when every fetch has finished. A namespace without a cursor is skipped with a warning.
// A failed fetch is logged and does not affect sibling namespaces or future ticks.
type FixedRateStrategy struct {
	transport     subsystems.Transport
	sink          subsystems.UpdateSink
	cursors       *subsystems.CursorMap
	namespaces    []string
	interval      time.Duration
	shutdownGrace time.Duration
	loggers       ldlog.Loggers
	quit          chan struct{}
	closeOnce     sync.Once
	wg            sync.WaitGroup
}

// NewFixedRateStrategy creates a FixedRateStrategy. A non-positive shutdownGrace is
// replaced by a default.
func NewFixedRateStrategy(
	transport subsystems.Transport,
	sink subsystems.UpdateSink,
	cursors *subsystems.CursorMap,
	namespaces []string,
	interval time.Duration,
	shutdownGrace time.Duration,
	loggers ldlog.Loggers,
) *FixedRateStrategy {
	if shutdownGrace <= 0 {
		shutdownGrace = defaultShutdownGrace
	}
	return &FixedRateStrategy{
		transport:     transport,
		sink:          sink,
		cursors:       cursors,
		namespaces:    namespaces,
		interval:      interval,
		shutdownGrace: shutdownGrace,
		loggers:       loggers,
		quit:          make(chan struct{}),
	}
}

// Start begins the polling loop in the background.
func (s *FixedRateStrategy) Start() {
	s.loggers.Infof("Started fixed rate polling with interval %s", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.quit:
				return
			case <-ticker.C:
				s.pollOnce()
			}
		}
	}()
}

// Close signals the polling loop to stop and waits, bounded by a grace period, for it
// to finish. In-flight fetches are not interrupted; the loop exits at its next
// iteration boundary.
func (s *FixedRateStrategy) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	waitWithTimeout(&s.wg, s.shutdownGrace)
	s.loggers.Info("Stopped fixed rate polling")
	return nil
}

// pollOnce runs one tick: every namespace with a cursor is fetched concurrently, and the
// method returns only when all fetches are done.
func (s *FixedRateStrategy) pollOnce() {
	s.loggers.Debugf("Fetching updates for namespaces: %v", s.namespaces)

	var tick sync.WaitGroup
	for _, namespace := range s.namespaces {
		cursor, ok := s.cursors.Get(namespace)
		if !ok {
			s.loggers.Warnf("No cursor for namespace %s, skipping update fetch", namespace)
			continue
		}
		tick.Add(1)
		go func(namespace, cursor string) {
			defer tick.Done()
			s.fetchNamespace(namespace, cursor)
		}(namespace, cursor)
	}
	tick.Wait()
}

func (s *FixedRateStrategy) fetchNamespace(namespace, cursor string) {
	resp, err := s.transport.FetchUpdates(context.Background(), namespace, cursor)
	if err != nil {
		s.loggers.Errorf("Failed to fetch updates for namespace %s: %s", namespace, err)
		return
	}
	if len(resp.FigFamilies) > 0 {
		s.sink.OnUpdate(resp.FigFamilies)
	}
	if resp.Cursor != "" {
		s.cursors.Set(namespace, resp.Cursor)
	}
	s.loggers.Debugf("Fetched updates for namespace %s, new cursor %s", namespace, resp.Cursor)
}

// waitWithTimeout waits for the group, giving up after the timeout so that a stuck
// fetch cannot block shutdown indefinitely.
func waitWithTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
