package fccomponents

import (
	"errors"
	"time"

	"github.com/figchain/go-client-sdk/internal/polling"
	"github.com/figchain/go-client-sdk/subsystems"
)

// DefaultPollInterval is the default and minimum value for
// PollingDataSourceBuilder.PollInterval.
const DefaultPollInterval = 30 * time.Second

// PollingDataSourceBuilder configures fixed rate polling.
//
// See PollingDataSource for usage.
type PollingDataSourceBuilder struct {
	pollInterval time.Duration
}

// PollingDataSource returns a configurable factory for keeping data current by polling
// at a fixed interval. This is the default polling behavior; for lower update latency
// use LongPollingDataSource.
func PollingDataSource() *PollingDataSourceBuilder {
	return &PollingDataSourceBuilder{pollInterval: DefaultPollInterval}
}

// PollInterval sets the interval between polls. The default and minimum value is
// DefaultPollInterval; values less than this are set to the default.
func (b *PollingDataSourceBuilder) PollInterval(pollInterval time.Duration) *PollingDataSourceBuilder {
	if pollInterval < DefaultPollInterval {
		b.pollInterval = DefaultPollInterval
	} else {
		b.pollInterval = pollInterval
	}
	return b
}

// Used in tests to skip parameter validation.
//
//nolint:unused // it is used in tests
func (b *PollingDataSourceBuilder) forcePollInterval(pollInterval time.Duration) *PollingDataSourceBuilder {
	b.pollInterval = pollInterval
	return b
}

// CreatePollingStrategy is called by the client to create the strategy instance.
func (b *PollingDataSourceBuilder) CreatePollingStrategy(
	context subsystems.ClientContext,
	sink subsystems.UpdateSink,
	cursors *subsystems.CursorMap,
) (subsystems.PollingStrategy, error) {
	return polling.NewFixedRateStrategy(
		context.Transport,
		sink,
		cursors,
		context.Namespaces,
		b.pollInterval,
		context.ShutdownGrace,
		context.Loggers,
	), nil
}

// LongPollingDataSourceBuilder configures long polling with adaptive throttling.
//
// See LongPollingDataSource for usage.
type LongPollingDataSourceBuilder struct {
	config polling.LongPollConfig
}

// LongPollingDataSource returns a configurable factory for keeping data current with
// long-poll requests: each request is held open by the server until data is available
// or the hold time elapses, minimizing update latency without constant re-polling.
//
// The configured transport must support long polling (see
// subsystems.LongPollTransport); otherwise client construction fails.
func LongPollingDataSource() *LongPollingDataSourceBuilder {
	return &LongPollingDataSourceBuilder{}
}

// HoldTime sets how long the server may hold each request open.
func (b *LongPollingDataSourceBuilder) HoldTime(holdTime time.Duration) *LongPollingDataSourceBuilder {
	b.config.HoldTime = holdTime
	return b
}

// ThrottleDelay sets the pause inserted before the next request once a namespace has
// updated often enough to trigger throttling.
func (b *LongPollingDataSourceBuilder) ThrottleDelay(delay time.Duration) *LongPollingDataSourceBuilder {
	b.config.ThrottleDelay = delay
	return b
}

// ThrottleWindow sets the sliding window over which update frequency is measured.
func (b *LongPollingDataSourceBuilder) ThrottleWindow(window time.Duration) *LongPollingDataSourceBuilder {
	b.config.ThrottleWindow = window
	return b
}

// ThrottleThreshold sets how many updates within the window trigger throttling.
func (b *LongPollingDataSourceBuilder) ThrottleThreshold(threshold int) *LongPollingDataSourceBuilder {
	b.config.ThrottleThreshold = threshold
	return b
}

// ErrorBackoff sets the pause after a transport error before retrying.
func (b *LongPollingDataSourceBuilder) ErrorBackoff(backoff time.Duration) *LongPollingDataSourceBuilder {
	b.config.ErrorBackoff = backoff
	return b
}

// CreatePollingStrategy is called by the client to create the strategy instance.
func (b *LongPollingDataSourceBuilder) CreatePollingStrategy(
	context subsystems.ClientContext,
	sink subsystems.UpdateSink,
	cursors *subsystems.CursorMap,
) (subsystems.PollingStrategy, error) {
	longPoll, ok := context.Transport.(subsystems.LongPollTransport)
	if !ok {
		return nil, errors.New("long polling requires a transport that implements subsystems.LongPollTransport")
	}
	config := b.config
	config.ShutdownGrace = context.ShutdownGrace
	return polling.NewLongPollStrategy(
		longPoll,
		sink,
		cursors,
		context.Namespaces,
		config,
		context.Loggers,
	), nil
}
