package polling

import (
	"context"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/subsystems"
)

const (
	// DefaultHoldTime is how long the server may hold a long-poll request open.
	DefaultHoldTime = 30 * time.Second
	// DefaultThrottleThreshold is the number of updates within the window that triggers
	// throttling.
	DefaultThrottleThreshold = 3
	// DefaultThrottleWindow is the sliding window over which update frequency is measured.
	DefaultThrottleWindow = 10 * time.Second
	// DefaultThrottleDelay is the pause inserted before the next request once the
	// threshold is reached, so a rapidly changing namespace cannot drive a tight loop.
	DefaultThrottleDelay = 500 * time.Millisecond
	// DefaultErrorBackoff is the pause after a transport error before retrying.
	DefaultErrorBackoff = 5 * time.Second
)

// LongPollStrategy runs one indefinitely-looping goroutine per namespace. Each iteration
// issues a single long-poll call bounded by the server-side hold time; the call returns
// either with fresh families and an advanced cursor, or, on hold-timeout, with the same
// cursor and no families. Updates are throttled adaptively: once a namespace has
// received ThrottleThreshold updates within ThrottleWindow, a fixed delay is inserted
// before the next request.
type LongPollStrategy struct {
	transport  subsystems.LongPollTransport
	sink       subsystems.UpdateSink
	cursors    *subsystems.CursorMap
	namespaces []string
	loggers    ldlog.Loggers

	holdTime          time.Duration
	throttleThreshold int
	throttleWindow    time.Duration
	throttleDelay     time.Duration
	errorBackoff      time.Duration
	shutdownGrace     time.Duration

	now func() time.Time // replaced in tests

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// LongPollConfig holds the tunable parameters of a LongPollStrategy. Zero values are
// replaced by the defaults above.
type LongPollConfig struct {
	HoldTime          time.Duration
	ThrottleThreshold int
	ThrottleWindow    time.Duration
	ThrottleDelay     time.Duration
	ErrorBackoff      time.Duration
	ShutdownGrace     time.Duration
}

// NewLongPollStrategy creates a LongPollStrategy.
func NewLongPollStrategy(
	transport subsystems.LongPollTransport,
	sink subsystems.UpdateSink,
	cursors *subsystems.CursorMap,
	namespaces []string,
	config LongPollConfig,
	loggers ldlog.Loggers,
) *LongPollStrategy {
	if config.HoldTime <= 0 {
		config.HoldTime = DefaultHoldTime
	}
	if config.ThrottleThreshold <= 0 {
		config.ThrottleThreshold = DefaultThrottleThreshold
	}
	if config.ThrottleWindow <= 0 {
		config.ThrottleWindow = DefaultThrottleWindow
	}
	if config.ThrottleDelay <= 0 {
		config.ThrottleDelay = DefaultThrottleDelay
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = DefaultErrorBackoff
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = defaultShutdownGrace
	}
	return &LongPollStrategy{
		transport:         transport,
		sink:              sink,
		cursors:           cursors,
		namespaces:        namespaces,
		loggers:           loggers,
		holdTime:          config.HoldTime,
		throttleThreshold: config.ThrottleThreshold,
		throttleWindow:    config.ThrottleWindow,
		throttleDelay:     config.ThrottleDelay,
		errorBackoff:      config.ErrorBackoff,
		shutdownGrace:     config.ShutdownGrace,
		now:               time.Now,
		quit:              make(chan struct{}),
	}
}

// Start launches one polling goroutine per namespace.
func (s *LongPollStrategy) Start() {
	for _, namespace := range s.namespaces {
		s.wg.Add(1)
		go func(namespace string) {
			defer s.wg.Done()
			s.pollNamespace(namespace)
		}(namespace)
	}
	s.loggers.Infof("Started long polling for namespaces: %v", s.namespaces)
}

// Close signals every namespace loop to stop and waits, bounded by a grace period, for
// them to exit. A loop blocked in a long-poll call is not interrupted; it observes the
// stop request when the call returns.
func (s *LongPollStrategy) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	waitWithTimeout(&s.wg, s.shutdownGrace)
	s.loggers.Info("Stopped long polling")
	return nil
}

func (s *LongPollStrategy) pollNamespace(namespace string) {
	window := newUpdateWindow(s.throttleThreshold, s.throttleWindow)
	for {
		select {
		case <-s.quit:
			return
		default:
		}

		cursor, ok := s.cursors.Get(namespace)
		if !ok {
			s.loggers.Warnf("No cursor for namespace %s, stopping long poll", namespace)
			return
		}

		resp, err := s.transport.FetchUpdatesLongPoll(context.Background(), namespace, cursor, s.holdTime)
		if err != nil {
			s.loggers.Errorf("Long poll failed for namespace %s: %s", namespace, err)
			if !s.sleep(s.errorBackoff) {
				return
			}
			continue
		}

		hasUpdates := len(resp.FigFamilies) > 0
		if hasUpdates {
			s.sink.OnUpdate(resp.FigFamilies)
		}
		if resp.Cursor != "" {
			s.cursors.Set(namespace, resp.Cursor)
		}
		s.loggers.Debugf("Long poll for namespace %s returned %d families, new cursor %s",
			namespace, len(resp.FigFamilies), resp.Cursor)

		if hasUpdates && window.recordAndCheck(s.now()) {
			s.loggers.Debugf("Throttling namespace %s after %d updates within %s",
				namespace, s.throttleThreshold, s.throttleWindow)
			if !s.sleep(s.throttleDelay) {
				return
			}
		}
	}
}

// sleep pauses for d, returning false if stop was requested in the meantime.
func (s *LongPollStrategy) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.quit:
		return false
	case <-timer.C:
		return true
	}
}

// updateWindow tracks update timestamps for one namespace within a sliding window. Each
// namespace has its own polling goroutine, so the window needs no locking.
type updateWindow struct {
	threshold int
	span      time.Duration
	stamps    []time.Time
}

func newUpdateWindow(threshold int, span time.Duration) *updateWindow {
	return &updateWindow{threshold: threshold, span: span}
}

// recordAndCheck drops timestamps that have fallen out of the window, records now, and
// reports whether the update frequency has reached the throttling threshold.
func (w *updateWindow) recordAndCheck(now time.Time) bool {
	kept := w.stamps[:0]
	for _, t := range w.stamps {
		if now.Sub(t) <= w.span {
			kept = append(kept, t)
		}
	}
	w.stamps = append(kept, now)
	return len(w.stamps) >= w.threshold
}
