package polling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/internal/sharedtest"
	"github.com/figchain/go-client-sdk/subsystems"
)

const testInterval = 10 * time.Millisecond

func TestFixedRateForwardsUpdatesAndAdvancesCursor(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{
		Cursor:      "cursor-2",
		FigFamilies: []fcmodel.FigFamily{sharedtest.BasicFamily("billing", "limits", "v2")},
	}, nil)

	sink := sharedtest.NewCapturingUpdateSink()
	cursors := subsystems.NewCursorMap()
	cursors.Set("billing", "cursor-1")

	s := NewFixedRateStrategy(transport, sink, cursors, []string{"billing"}, testInterval, 0,
		ldlog.NewDisabledLoggers())
	s.Start()
	defer func() { _ = s.Close() }()

	families := th.RequireValue(t, sink.Updates, time.Second)
	require.Len(t, families, 1)
	assert.Equal(t, "limits", families[0].Key)

	require.Eventually(t, func() bool {
		cursor, _ := cursors.Get("billing")
		return cursor == "cursor-2"
	}, time.Second, time.Millisecond)
}

func TestFixedRateNeverFetchesNamespaceWithoutCursor(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	sink := sharedtest.NewCapturingUpdateSink()
	cursors := subsystems.NewCursorMap()
	cursors.Set("billing", "cursor-1")
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{Cursor: "cursor-1"}, nil)
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{Cursor: "cursor-1"}, nil)

	s := NewFixedRateStrategy(transport, sink, cursors, []string{"billing", "search"},
		testInterval, 0, ldlog.NewDisabledLoggers())
	s.Start()
	defer func() { _ = s.Close() }()

	require.Eventually(t, func() bool {
		return transport.CallCount("updates", "billing") >= 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, transport.CallCount("updates", "search"))
}

func TestFixedRateDoesNotPublishEmptyUpdates(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{Cursor: "cursor-1"}, nil)
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{Cursor: "cursor-1"}, nil)

	sink := sharedtest.NewCapturingUpdateSink()
	cursors := subsystems.NewCursorMap()
	cursors.Set("billing", "cursor-1")

	s := NewFixedRateStrategy(transport, sink, cursors, []string{"billing"}, testInterval, 0,
		ldlog.NewDisabledLoggers())
	s.Start()
	defer func() { _ = s.Close() }()

	require.Eventually(t, func() bool {
		return transport.CallCount("updates", "billing") >= 2
	}, time.Second, time.Millisecond)
	th.AssertNoMoreValues(t, sink.Updates, 20*time.Millisecond)
}

func TestFixedRateSurvivesFetchErrors(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{}, errors.New("boom"))
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{
		Cursor:      "cursor-2",
		FigFamilies: []fcmodel.FigFamily{sharedtest.BasicFamily("billing", "limits", "v2")},
	}, nil)

	sink := sharedtest.NewCapturingUpdateSink()
	cursors := subsystems.NewCursorMap()
	cursors.Set("billing", "cursor-1")

	s := NewFixedRateStrategy(transport, sink, cursors, []string{"billing"}, testInterval, 0,
		ldlog.NewDisabledLoggers())
	s.Start()
	defer func() { _ = s.Close() }()

	families := th.RequireValue(t, sink.Updates, time.Second)
	assert.Len(t, families, 1)
}

func TestFixedRateCloseStopsPollingAndIsIdempotent(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	sink := sharedtest.NewCapturingUpdateSink()
	cursors := subsystems.NewCursorMap()

	s := NewFixedRateStrategy(transport, sink, cursors, []string{"billing"}, testInterval, 0,
		ldlog.NewDisabledLoggers())
	s.Start()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	calls := len(transport.Calls())
	time.Sleep(5 * testInterval)
	assert.Equal(t, calls, len(transport.Calls()), "no fetches after Close")
}

// stuckTransport blocks every update fetch until released, to exercise shutdown behavior
// with an unresponsive server.
type stuckTransport struct {
	release chan struct{}
}

func (s *stuckTransport) FetchInitial(context.Context, string, string, string) (fcmodel.InitialFetchResponse, error) {
	return fcmodel.InitialFetchResponse{}, nil
}

func (s *stuckTransport) FetchUpdates(context.Context, string, string) (fcmodel.UpdateFetchResponse, error) {
	<-s.release
	return fcmodel.UpdateFetchResponse{}, nil
}

func (s *stuckTransport) Close() error { return nil }

func TestCloseHonorsConfiguredShutdownGrace(t *testing.T) {
	transport := &stuckTransport{release: make(chan struct{})}
	defer close(transport.release)
	cursors := subsystems.NewCursorMap()
	cursors.Set("billing", "cursor-1")

	s := NewFixedRateStrategy(transport, sharedtest.NewCapturingUpdateSink(), cursors,
		[]string{"billing"}, time.Millisecond, 50*time.Millisecond, ldlog.NewDisabledLoggers())
	s.Start()

	// Let the loop get stuck in a fetch, then confirm Close gives up after the configured
	// grace rather than the much longer default.
	time.Sleep(10 * time.Millisecond)
	start := time.Now()
	require.NoError(t, s.Close())
	assert.Less(t, time.Since(start), time.Second)
}
