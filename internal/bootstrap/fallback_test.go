package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-sdk-common/v3/ldlogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figchain/go-client-sdk/subsystems"
)

// scriptedStrategy is a BootstrapStrategy returning a fixed result, recording how often
// it ran.
type scriptedStrategy struct {
	result subsystems.BootstrapResult
	err    error
	calls  int
}

func (s *scriptedStrategy) Bootstrap(context.Context, []string) (subsystems.BootstrapResult, error) {
	s.calls++
	if s.err != nil {
		return subsystems.BootstrapResult{}, s.err
	}
	return s.result, nil
}

func TestServerFirstUsesServerResultWhenItSucceeds(t *testing.T) {
	server := &scriptedStrategy{result: subsystems.BootstrapResult{Cursors: map[string]string{"billing": "server-cursor"}}}
	vault := &scriptedStrategy{result: subsystems.BootstrapResult{Cursors: map[string]string{"billing": "vault-token"}}}

	s := NewServerFirstStrategy(server, vault, ldlog.NewDisabledLoggers())
	result, err := s.Bootstrap(context.Background(), []string{"billing"})
	require.NoError(t, err)

	assert.Equal(t, "server-cursor", result.Cursors["billing"])
	assert.Equal(t, 0, vault.calls, "vault must not be touched when the server succeeds")
}

func TestServerFirstFallsBackToVault(t *testing.T) {
	server := &scriptedStrategy{err: errors.New("server down")}
	vault := &scriptedStrategy{result: subsystems.BootstrapResult{Cursors: map[string]string{"billing": "vault-token"}}}

	mockLog := ldlogtest.NewMockLog()
	s := NewServerFirstStrategy(server, vault, mockLog.Loggers)
	result, err := s.Bootstrap(context.Background(), []string{"billing"})
	require.NoError(t, err)

	assert.Equal(t, "vault-token", result.Cursors["billing"])
	assert.NotEmpty(t, mockLog.GetOutput(ldlog.Warn))
}

func TestServerFirstSurfacesVaultErrorWhenBothFail(t *testing.T) {
	server := &scriptedStrategy{err: errors.New("server down")}
	vault := &scriptedStrategy{err: errors.New("vault down")}

	s := NewServerFirstStrategy(server, vault, ldlog.NewDisabledLoggers())
	_, err := s.Bootstrap(context.Background(), []string{"billing"})

	// The vault was the last resort, so its error is the one reported.
	assert.ErrorContains(t, err, "vault down")
}
