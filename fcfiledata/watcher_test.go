package fcfiledata

import (
	"os"
	"testing"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figchain/go-client-sdk/internal/sharedtest"
	"github.com/figchain/go-client-sdk/subsystems"
)

const watchTimeout = 5 * time.Second

func TestWatcherRepublishesOnFileChange(t *testing.T) {
	path := writeTempFile(t, "figs.json",
		`[{"namespace": "billing", "key": "rate-limits", "defaultVersion": "v1", "figs": []}]`)

	sink := sharedtest.NewCapturingUpdateSink()
	strategy, err := DataSource().FilePaths(path).CreatePollingStrategy(
		subsystems.ClientContext{Loggers: ldlog.NewDisabledLoggers()}, sink, nil)
	require.NoError(t, err)

	strategy.Start()
	defer func() { _ = strategy.Close() }()

	// Give the watcher a moment to register before the write.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path,
		[]byte(`[{"namespace": "billing", "key": "rate-limits", "defaultVersion": "v2", "figs": []}]`), 0600))

	families := th.RequireValue(t, sink.Updates, watchTimeout)
	require.Len(t, families, 1)
	assert.Equal(t, "v2", families[0].DefaultVersion)
}

func TestWatcherKeepsPreviousDataWhenReloadFails(t *testing.T) {
	path := writeTempFile(t, "figs.json",
		`[{"namespace": "billing", "key": "rate-limits", "defaultVersion": "v1", "figs": []}]`)

	sink := sharedtest.NewCapturingUpdateSink()
	strategy, err := DataSource().FilePaths(path).CreatePollingStrategy(
		subsystems.ClientContext{Loggers: ldlog.NewDisabledLoggers()}, sink, nil)
	require.NoError(t, err)

	strategy.Start()
	defer func() { _ = strategy.Close() }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`[{"broken`), 0600))

	th.AssertNoMoreValues(t, sink.Updates, 500*time.Millisecond)
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	path := writeTempFile(t, "figs.json", `[]`)
	strategy, err := DataSource().FilePaths(path).CreatePollingStrategy(
		subsystems.ClientContext{Loggers: ldlog.NewDisabledLoggers()},
		sharedtest.NewCapturingUpdateSink(), nil)
	require.NoError(t, err)

	strategy.Start()
	require.NoError(t, strategy.Close())
	require.NoError(t, strategy.Close())
}
