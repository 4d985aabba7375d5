package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/internal/sharedtest"
	"github.com/figchain/go-client-sdk/subsystems"
)

func TestVaultFirstFailsHardWhenVaultFails(t *testing.T) {
	vault := &scriptedStrategy{err: errors.New("vault down")}
	server := &scriptedStrategy{}
	transport := sharedtest.NewMockTransport()

	s := NewVaultFirstStrategy(vault, server, transport, ldlog.NewDisabledLoggers())
	_, err := s.Bootstrap(context.Background(), []string{"billing"})

	assert.ErrorContains(t, err, "vault down")
	assert.Equal(t, 0, server.calls)
}

func TestVaultFirstCatchesUpCoveredNamespaces(t *testing.T) {
	vault := &scriptedStrategy{result: subsystems.BootstrapResult{
		FigFamilies: []fcmodel.FigFamily{sharedtest.BasicFamily("billing", "limits", "v1")},
		Cursors:     map[string]string{"billing": "token-1"},
	}}
	server := &scriptedStrategy{}
	transport := sharedtest.NewMockTransport()
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{
		Cursor:      "cursor-2",
		FigFamilies: []fcmodel.FigFamily{sharedtest.BasicFamily("billing", "limits", "v2")},
	}, nil)

	s := NewVaultFirstStrategy(vault, server, transport, ldlog.NewDisabledLoggers())
	result, err := s.Bootstrap(context.Background(), []string{"billing"})
	require.NoError(t, err)

	assert.Len(t, result.FigFamilies, 2, "snapshot data plus catch-up data")
	assert.Equal(t, "cursor-2", result.Cursors["billing"])
	assert.Equal(t, 0, server.calls, "no namespace was missing from the snapshot")

	calls := transport.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "token-1", calls[0].Cursor, "catch-up must start from the snapshot's token")
}

func TestVaultFirstBackfillsUncoveredNamespacesFromServer(t *testing.T) {
	vault := &scriptedStrategy{result: subsystems.BootstrapResult{
		FigFamilies: []fcmodel.FigFamily{sharedtest.BasicFamily("billing", "limits", "v1")},
		Cursors:     map[string]string{"billing": "token-1"},
	}}
	server := &scriptedStrategy{result: subsystems.BootstrapResult{
		FigFamilies: []fcmodel.FigFamily{sharedtest.BasicFamily("search", "ranking", "v1")},
		Cursors:     map[string]string{"search": "cursor-s"},
	}}
	transport := sharedtest.NewMockTransport()
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{Cursor: "cursor-2"}, nil)

	s := NewVaultFirstStrategy(vault, server, transport, ldlog.NewDisabledLoggers())
	result, err := s.Bootstrap(context.Background(), []string{"billing", "search"})
	require.NoError(t, err)

	assert.Equal(t, 1, server.calls)
	assert.Len(t, result.FigFamilies, 2)
	assert.Equal(t, "cursor-s", result.Cursors["search"])
	assert.Equal(t, "cursor-2", result.Cursors["billing"])
}

func TestVaultFirstKeepsVaultStateWhenCatchUpFails(t *testing.T) {
	vault := &scriptedStrategy{result: subsystems.BootstrapResult{
		FigFamilies: []fcmodel.FigFamily{sharedtest.BasicFamily("billing", "limits", "v1")},
		Cursors:     map[string]string{"billing": "token-1"},
	}}
	server := &scriptedStrategy{}
	transport := sharedtest.NewMockTransport()
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{}, errors.New("server down"))

	s := NewVaultFirstStrategy(vault, server, transport, ldlog.NewDisabledLoggers())
	result, err := s.Bootstrap(context.Background(), []string{"billing"})
	require.NoError(t, err, "a failed catch-up degrades softly")

	assert.Len(t, result.FigFamilies, 1)
	assert.Equal(t, "token-1", result.Cursors["billing"], "cursor stays at the snapshot's token")
}

func TestVaultFirstToleratesFailedBackfill(t *testing.T) {
	vault := &scriptedStrategy{result: subsystems.BootstrapResult{
		FigFamilies: []fcmodel.FigFamily{sharedtest.BasicFamily("billing", "limits", "v1")},
		Cursors:     map[string]string{"billing": "token-1"},
	}}
	server := &scriptedStrategy{err: errors.New("server down")}
	transport := sharedtest.NewMockTransport()
	transport.QueueUpdate("billing", fcmodel.UpdateFetchResponse{Cursor: "cursor-2"}, nil)

	s := NewVaultFirstStrategy(vault, server, transport, ldlog.NewDisabledLoggers())
	result, err := s.Bootstrap(context.Background(), []string{"billing", "search"})
	require.NoError(t, err, "the vault-covered namespaces are still valid")

	assert.Len(t, result.FigFamilies, 1)
	_, present := result.Cursors["search"]
	assert.False(t, present, "the failed namespace stays absent")
}
