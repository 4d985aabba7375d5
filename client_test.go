package fcclient

import (
	"errors"
	"testing"
	"time"

	th "github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/figchain/go-client-sdk/fccomponents"
	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/internal/sharedtest"
	"github.com/figchain/go-client-sdk/subsystems"
)

const awaitTimeout = time.Second

func fastBootstrap() *fccomponents.ServerBootstrapBuilder {
	return fccomponents.ServerBootstrap().MaxRetries(0).RetryDelay(time.Millisecond)
}

func makeTestClient(t *testing.T, transport *sharedtest.MockTransport) *FCClient {
	t.Helper()
	client, err := MakeCustomClient(Config{
		Namespaces: []string{"billing"},
		Transport:  transport,
		Bootstrap:  fastBootstrap(),
	})
	require.NoError(t, err)
	return client
}

func TestMakeCustomClientValidatesConfig(t *testing.T) {
	_, err := MakeCustomClient(Config{Transport: sharedtest.NewMockTransport()})
	assert.ErrorContains(t, err, "namespace")

	_, err = MakeCustomClient(Config{Namespaces: []string{"billing"}})
	assert.ErrorContains(t, err, "transport")
}

func TestClientBootstrapsAndServesFigs(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	transport.QueueInitial("billing", fcmodel.InitialFetchResponse{
		Cursor:      "cursor-1",
		FigFamilies: []fcmodel.FigFamily{sharedtest.BasicFamily("billing", "rate-limits", "v1")},
	}, nil)

	client := makeTestClient(t, transport)
	defer func() { _ = client.Close() }()

	client.Start()
	require.NoError(t, client.AwaitReady(awaitTimeout))
	assert.True(t, client.Initialized())

	fig, ok := client.GetFig("billing", "rate-limits", fcmodel.EvaluationContext{})
	require.True(t, ok)
	assert.Equal(t, "v1", fig.Version)

	assert.Equal(t, map[string]string{"billing": "cursor-1"}, client.Cursors())
}

func TestFailedBootstrapReleasesReadyGate(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	transport.QueueInitial("billing", fcmodel.InitialFetchResponse{}, errors.New("server down"))

	client := makeTestClient(t, transport)
	defer func() { _ = client.Close() }()

	client.Start()
	err := client.AwaitReady(awaitTimeout)
	assert.ErrorContains(t, err, "server down")
	assert.False(t, client.Initialized())

	// Readers must not hang after a failed bootstrap; they just see no data.
	done := make(chan struct{})
	go func() {
		_, ok := client.GetFig("billing", "rate-limits", fcmodel.EvaluationContext{})
		assert.False(t, ok)
		close(done)
	}()
	th.AssertChannelClosed(t, done, awaitTimeout)
}

func TestAwaitReadyTimesOutBeforeStart(t *testing.T) {
	client := makeTestClient(t, sharedtest.NewMockTransport())
	defer func() { _ = client.Close() }()

	err := client.AwaitReady(10 * time.Millisecond)
	assert.Equal(t, ErrInitializationTimeout, err)
}

func TestStartIsIdempotent(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	transport.QueueInitial("billing", fcmodel.InitialFetchResponse{Cursor: "c1"}, nil)

	client := makeTestClient(t, transport)
	defer func() { _ = client.Close() }()

	client.Start()
	client.Start()
	require.NoError(t, client.AwaitReady(awaitTimeout))

	assert.Equal(t, 1, transport.CallCount("initial", "billing"))
}

func TestDefaultContextMergesUnderCallContext(t *testing.T) {
	family := fcmodel.FigFamily{
		Namespace: "billing", Key: "rate-limits",
		Figs: []fcmodel.Fig{
			{ID: "a", Version: "v2"},
			{ID: "b", Version: "v1"},
		},
		DefaultVersion: "v1",
		Rules: []fcmodel.Rule{{
			TargetVersion: "v2",
			Conditions: []fcmodel.Condition{
				{Variable: "plan", Op: fcmodel.OperatorEquals, Values: []string{"pro"}},
			},
		}},
	}
	transport := sharedtest.NewMockTransport()
	transport.QueueInitial("billing", fcmodel.InitialFetchResponse{
		Cursor:      "c1",
		FigFamilies: []fcmodel.FigFamily{family},
	}, nil)

	client, err := MakeCustomClient(Config{
		Namespaces:     []string{"billing"},
		Transport:      transport,
		Bootstrap:      fastBootstrap(),
		DefaultContext: fcmodel.ContextFromMap(map[string]string{"plan": "free"}),
	})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	client.Start()
	require.NoError(t, client.AwaitReady(awaitTimeout))

	// The default context alone selects the default version.
	fig, _ := client.GetFig("billing", "rate-limits", fcmodel.EvaluationContext{})
	assert.Equal(t, "v1", fig.Version)

	// The per-call context overrides the default's plan attribute.
	override := fcmodel.ContextFromMap(map[string]string{"plan": "pro"})
	fig, _ = client.GetFig("billing", "rate-limits", override)
	assert.Equal(t, "v2", fig.Version)
}

func TestGetFigDefaultRequiresSingleNamespace(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	client, err := MakeCustomClient(Config{
		Namespaces: []string{"billing", "search"},
		Transport:  transport,
		Bootstrap:  fastBootstrap(),
	})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, _, err = client.GetFigDefault("rate-limits")
	assert.ErrorContains(t, err, "multiple namespaces")
}

func TestRegisterListenerFiresOnExactKeyOnly(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	transport.QueueInitial("billing", fcmodel.InitialFetchResponse{Cursor: "c1"}, nil)

	client := makeTestClient(t, transport)
	defer func() { _ = client.Close() }()

	client.Start()
	require.NoError(t, client.AwaitReady(awaitTimeout))

	received := make(chan fcmodel.Fig, 10)
	client.RegisterListener("billing", "rate-limits", fcmodel.EvaluationContext{},
		func(fig fcmodel.Fig) { received <- fig })

	client.OnUpdate([]fcmodel.FigFamily{sharedtest.BasicFamily("billing", "other-key", "v1")})
	th.AssertNoMoreValues(t, received, 20*time.Millisecond)

	client.OnUpdate([]fcmodel.FigFamily{sharedtest.BasicFamily("billing", "rate-limits", "v2")})
	fig := th.RequireValue(t, received, awaitTimeout)
	assert.Equal(t, "v2", fig.Version)
}

func TestUpdateListenerReceivesEveryBatch(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	transport.QueueInitial("billing", fcmodel.InitialFetchResponse{Cursor: "c1"}, nil)

	client := makeTestClient(t, transport)
	defer func() { _ = client.Close() }()

	ch := client.AddUpdateListener()
	batch := []fcmodel.FigFamily{sharedtest.BasicFamily("billing", "rate-limits", "v1")}
	client.OnUpdate(batch)

	assert.Equal(t, batch, th.RequireValue(t, ch, awaitTimeout))

	client.RemoveUpdateListener(ch)
	th.AssertChannelClosed(t, ch, awaitTimeout)
}

func TestOnUpdateIgnoresEmptyBatch(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	client := makeTestClient(t, transport)
	defer func() { _ = client.Close() }()

	ch := client.AddUpdateListener()
	client.OnUpdate(nil)
	th.AssertNoMoreValues(t, ch, 20*time.Millisecond)
}

type reversingDecrypter struct{}

func (reversingDecrypter) Decrypt(fig fcmodel.Fig, _ string) ([]byte, error) {
	out := make([]byte, len(fig.Payload))
	for i, b := range fig.Payload {
		out[len(out)-1-i] = b
	}
	return out, nil
}

func TestPayloadFor(t *testing.T) {
	plain := sharedtest.BasicFamily("billing", "plain", "v1")
	encrypted := fcmodel.FigFamily{
		Namespace: "billing", Key: "secret", DefaultVersion: "v1",
		Figs: []fcmodel.Fig{{
			ID: "s1", Version: "v1", Payload: []byte("desrever"),
			Encrypted: true, KeyID: "kid", WrappedDEK: []byte("dek"),
		}},
	}

	setup := func(t *testing.T, decrypter subsystems.PayloadDecrypter) *FCClient {
		transport := sharedtest.NewMockTransport()
		transport.QueueInitial("billing", fcmodel.InitialFetchResponse{
			Cursor:      "c1",
			FigFamilies: []fcmodel.FigFamily{plain, encrypted},
		}, nil)
		client, err := MakeCustomClient(Config{
			Namespaces: []string{"billing"},
			Transport:  transport,
			Bootstrap:  fastBootstrap(),
			Decrypter:  decrypter,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		client.Start()
		require.NoError(t, client.AwaitReady(awaitTimeout))
		return client
	}

	t.Run("plaintext payload passes through", func(t *testing.T) {
		client := setup(t, nil)
		payload, err := client.PayloadFor("billing", "plain", fcmodel.EvaluationContext{})
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"value":true}`), payload)
	})

	t.Run("encrypted payload without decrypter fails", func(t *testing.T) {
		client := setup(t, nil)
		_, err := client.PayloadFor("billing", "secret", fcmodel.EvaluationContext{})
		assert.ErrorContains(t, err, "no decrypter")
	})

	t.Run("encrypted payload is decrypted", func(t *testing.T) {
		client := setup(t, reversingDecrypter{})
		payload, err := client.PayloadFor("billing", "secret", fcmodel.EvaluationContext{})
		require.NoError(t, err)
		assert.Equal(t, []byte("reversed"), payload)
	})

	t.Run("unknown key fails", func(t *testing.T) {
		client := setup(t, nil)
		_, err := client.PayloadFor("billing", "nope", fcmodel.EvaluationContext{})
		assert.ErrorContains(t, err, "no fig resolved")
	})
}

func TestCloseShutsDownTransportAndListeners(t *testing.T) {
	transport := sharedtest.NewMockTransport()
	transport.QueueInitial("billing", fcmodel.InitialFetchResponse{Cursor: "c1"}, nil)

	client := makeTestClient(t, transport)
	client.Start()
	require.NoError(t, client.AwaitReady(awaitTimeout))

	ch := client.AddUpdateListener()
	require.NoError(t, client.Close())

	assert.True(t, transport.Closed())
	th.AssertChannelClosed(t, ch, awaitTimeout)
}
