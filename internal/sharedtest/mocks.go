// Package sharedtest contains test doubles and fixture helpers shared by the test suites
// of other packages. Nothing in it is part of the public API.
package sharedtest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/subsystems"
)

// TransportCall records one fetch made against a MockTransport.
type TransportCall struct {
	Kind      string // "initial", "updates", or "longpoll"
	Namespace string
	Cursor    string
	HoldTime  time.Duration
}

type initialResult struct {
	resp fcmodel.InitialFetchResponse
	err  error
}

type updateResult struct {
	resp fcmodel.UpdateFetchResponse
	err  error
}

// MockTransport is a scripted implementation of subsystems.LongPollTransport. Queue
// responses per namespace; each fetch consumes one. A fetch with nothing queued fails,
// so a runaway polling loop surfaces as logged errors rather than hanging a test.
type MockTransport struct {
	lock    sync.Mutex
	initial map[string][]initialResult
	updates map[string][]updateResult
	calls   []TransportCall
	closed  bool
}

// NewMockTransport creates an empty MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		initial: make(map[string][]initialResult),
		updates: make(map[string][]updateResult),
	}
}

// QueueInitial appends a scripted result for FetchInitial on the given namespace.
func (m *MockTransport) QueueInitial(namespace string, resp fcmodel.InitialFetchResponse, err error) {
	m.lock.Lock()
	m.initial[namespace] = append(m.initial[namespace], initialResult{resp: resp, err: err})
	m.lock.Unlock()
}

// QueueUpdate appends a scripted result consumed by both FetchUpdates and
// FetchUpdatesLongPoll on the given namespace.
func (m *MockTransport) QueueUpdate(namespace string, resp fcmodel.UpdateFetchResponse, err error) {
	m.lock.Lock()
	m.updates[namespace] = append(m.updates[namespace], updateResult{resp: resp, err: err})
	m.lock.Unlock()
}

// FetchInitial implements subsystems.Transport.
func (m *MockTransport) FetchInitial(
	_ context.Context,
	namespace, _, _ string,
) (fcmodel.InitialFetchResponse, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.calls = append(m.calls, TransportCall{Kind: "initial", Namespace: namespace})
	queue := m.initial[namespace]
	if len(queue) == 0 {
		return fcmodel.InitialFetchResponse{}, errors.New("no scripted initial response for " + namespace)
	}
	m.initial[namespace] = queue[1:]
	return queue[0].resp, queue[0].err
}

// FetchUpdates implements subsystems.Transport.
func (m *MockTransport) FetchUpdates(
	_ context.Context,
	namespace, cursor string,
) (fcmodel.UpdateFetchResponse, error) {
	return m.nextUpdate(TransportCall{Kind: "updates", Namespace: namespace, Cursor: cursor})
}

// FetchUpdatesLongPoll implements subsystems.LongPollTransport.
func (m *MockTransport) FetchUpdatesLongPoll(
	_ context.Context,
	namespace, cursor string,
	holdTime time.Duration,
) (fcmodel.UpdateFetchResponse, error) {
	return m.nextUpdate(TransportCall{Kind: "longpoll", Namespace: namespace, Cursor: cursor, HoldTime: holdTime})
}

func (m *MockTransport) nextUpdate(call TransportCall) (fcmodel.UpdateFetchResponse, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.calls = append(m.calls, call)
	queue := m.updates[call.Namespace]
	if len(queue) == 0 {
		return fcmodel.UpdateFetchResponse{}, errors.New("no scripted update response for " + call.Namespace)
	}
	m.updates[call.Namespace] = queue[1:]
	return queue[0].resp, queue[0].err
}

// Close implements subsystems.Transport.
func (m *MockTransport) Close() error {
	m.lock.Lock()
	m.closed = true
	m.lock.Unlock()
	return nil
}

// Calls returns a copy of every fetch made so far, in order.
func (m *MockTransport) Calls() []TransportCall {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]TransportCall(nil), m.calls...)
}

// CallCount returns how many fetches of the given kind were made for the namespace.
func (m *MockTransport) CallCount(kind, namespace string) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Kind == kind && c.Namespace == namespace {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closed
}

// CapturingUpdateSink is an UpdateSink that forwards every batch to a buffered channel
// for assertion with the channel helpers in go-test-helpers.
type CapturingUpdateSink struct {
	Updates chan []fcmodel.FigFamily
}

// NewCapturingUpdateSink creates a CapturingUpdateSink.
func NewCapturingUpdateSink() *CapturingUpdateSink {
	return &CapturingUpdateSink{Updates: make(chan []fcmodel.FigFamily, 100)}
}

// OnUpdate implements subsystems.UpdateSink.
func (s *CapturingUpdateSink) OnUpdate(families []fcmodel.FigFamily) {
	s.Updates <- families
}

// MockVaultKeeper is a VaultKeeper returning a fixed snapshot or error.
type MockVaultKeeper struct {
	Snapshot subsystems.VaultSnapshot
	Err      error
}

// RestoreSnapshot implements subsystems.VaultKeeper.
func (m *MockVaultKeeper) RestoreSnapshot(context.Context) (subsystems.VaultSnapshot, error) {
	if m.Err != nil {
		return subsystems.VaultSnapshot{}, m.Err
	}
	return m.Snapshot, nil
}

// BasicFamily builds a family with a single fig and that fig as the default, the minimal
// shape most tests need.
func BasicFamily(namespace, key, version string) fcmodel.FigFamily {
	return fcmodel.FigFamily{
		Namespace: namespace,
		Key:       key,
		Figs: []fcmodel.Fig{
			{ID: key + "-" + version, Version: version, Payload: []byte(`{"value":true}`)},
		},
		DefaultVersion: version,
	}
}
