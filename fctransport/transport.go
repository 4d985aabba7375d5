// Package fctransport provides the standard HTTP implementation of the FigChain wire
// protocol, including long-poll support.
//
// The initial full fetch is a GET and its responses pass through an in-memory HTTP cache
// honoring ETag and Cache-Control, so repeated bootstraps against an unchanged namespace
// are served conditionally. Incremental fetches are POSTs and are never cached.
package fctransport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gregjones/httpcache"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/subsystems"
)

const (
	initialFetchPath = "/api/v1/data/initial"
	updateFetchPath  = "/api/v1/data/updates"

	// holdTimeHeader carries the long-poll hold time, in whole seconds. Absent or zero
	// means the server answers immediately.
	holdTimeHeader = "X-FigChain-Hold-Time"

	requestIDHeader = "X-Request-ID"

	// longPollGrace pads the client-side deadline of a long-poll request past the
	// server-side hold time, so a held request is not cut off by its own timeout.
	longPollGrace = 10 * time.Second

	defaultRequestTimeout = 10 * time.Second
)

// Config holds the settings for an HTTPTransport. BaseURI and Tokens are required.
type Config struct {
	// BaseURI is the root of the FigChain service, without a trailing slash.
	BaseURI string

	// Tokens supplies the bearer token for each request. Use SharedSecret for a fixed
	// token.
	Tokens TokenProvider

	// HTTPClient optionally replaces the default client. Its Timeout is ignored for
	// long-poll requests, which manage their own deadline.
	HTTPClient *http.Client

	// Loggers is the logging destination.
	Loggers ldlog.Loggers
}

// HTTPTransport implements subsystems.LongPollTransport over HTTP. It is safe for
// concurrent use.
type HTTPTransport struct {
	baseURI        string
	tokens         TokenProvider
	client         *http.Client
	cachingClient  *http.Client
	longPollClient *http.Client
	loggers        ldlog.Loggers
}

// New creates an HTTPTransport.
func New(config Config) (*HTTPTransport, error) {
	if config.BaseURI == "" {
		return nil, errors.New("a base URI must be configured")
	}
	if config.Tokens == nil {
		return nil, errors.New("a token provider must be configured")
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}

	cachingClient := *client
	cachingClient.Transport = &httpcache.Transport{
		Cache:               httpcache.NewMemoryCache(),
		MarkCachedResponses: true,
		Transport:           client.Transport,
	}

	// Long-poll requests are deliberately held open by the server well past any
	// reasonable client timeout, so they get a client without one; the per-request
	// context deadline of hold time plus grace bounds them instead.
	longPollClient := *client
	longPollClient.Timeout = 0

	return &HTTPTransport{
		baseURI:        strings.TrimSuffix(config.BaseURI, "/"),
		tokens:         config.Tokens,
		client:         client,
		cachingClient:  &cachingClient,
		longPollClient: &longPollClient,
		loggers:        config.Loggers,
	}, nil
}

// FetchInitial implements subsystems.Transport.
func (t *HTTPTransport) FetchInitial(
	ctx context.Context,
	namespace, environmentID, asOfTimestamp string,
) (fcmodel.InitialFetchResponse, error) {
	query := url.Values{}
	query.Set("namespace", namespace)
	if environmentID != "" {
		query.Set("environmentId", environmentID)
	}
	if asOfTimestamp != "" {
		query.Set("asOfTimestamp", asOfTimestamp)
	}
	requestURL := t.baseURI + initialFetchPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fcmodel.InitialFetchResponse{}, fmt.Errorf("building initial fetch request: %w", err)
	}
	body, cached, err := t.do(t.cachingClient, req)
	if err != nil {
		return fcmodel.InitialFetchResponse{}, err
	}
	if cached && t.loggers.IsDebugEnabled() {
		t.loggers.Debugf("Initial fetch for namespace %s served from cache", namespace)
	}
	resp, err := fcmodel.ParseInitialFetchResponse(body)
	if err != nil {
		return fcmodel.InitialFetchResponse{}, fmt.Errorf("malformed initial fetch response: %w", err)
	}
	return resp, nil
}

// FetchUpdates implements subsystems.Transport. A 204 response means nothing has changed
// since cursor; it is returned as an empty family list with the cursor unchanged.
func (t *HTTPTransport) FetchUpdates(
	ctx context.Context,
	namespace, cursor string,
) (fcmodel.UpdateFetchResponse, error) {
	return t.fetchUpdates(ctx, namespace, cursor, 0)
}

// FetchUpdatesLongPoll implements subsystems.LongPollTransport.
func (t *HTTPTransport) FetchUpdatesLongPoll(
	ctx context.Context,
	namespace, cursor string,
	holdTime time.Duration,
) (fcmodel.UpdateFetchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, holdTime+longPollGrace)
	defer cancel()
	return t.fetchUpdates(ctx, namespace, cursor, holdTime)
}

func (t *HTTPTransport) fetchUpdates(
	ctx context.Context,
	namespace, cursor string,
	holdTime time.Duration,
) (fcmodel.UpdateFetchResponse, error) {
	requestBody, err := fcmodel.WriteUpdateFetchRequest(namespace, cursor, "")
	if err != nil {
		return fcmodel.UpdateFetchResponse{}, fmt.Errorf("building update fetch request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURI+updateFetchPath,
		bytes.NewReader(requestBody))
	if err != nil {
		return fcmodel.UpdateFetchResponse{}, fmt.Errorf("building update fetch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if holdTime > 0 {
		seconds := int(holdTime / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		req.Header.Set(holdTimeHeader, strconv.Itoa(seconds))
	}

	httpClient := t.client
	if holdTime > 0 {
		httpClient = t.longPollClient
	}

	// A long-poll request held to its hold time answers 204; treat it like an immediate
	// empty update.
	body, _, err := t.do(httpClient, req)
	if err != nil {
		return fcmodel.UpdateFetchResponse{}, err
	}
	if len(body) == 0 {
		return fcmodel.UpdateFetchResponse{Cursor: cursor}, nil
	}
	resp, err := fcmodel.ParseUpdateFetchResponse(body)
	if err != nil {
		return fcmodel.UpdateFetchResponse{}, fmt.Errorf("malformed update fetch response: %w", err)
	}
	return resp, nil
}

// Close implements subsystems.Transport.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	t.cachingClient.CloseIdleConnections()
	t.longPollClient.CloseIdleConnections()
	return nil
}

// do sends the request with authentication and tracing headers attached, checks the
// status, and returns the drained body. The second return value reports whether the
// response was served from the local HTTP cache.
func (t *HTTPTransport) do(client *http.Client, req *http.Request) ([]byte, bool, error) {
	token, err := t.tokens.Token(req.Context())
	if err != nil {
		return nil, false, fmt.Errorf("obtaining auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(requestIDHeader, uuid.NewString())

	res, err := client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_, _ = io.ReadAll(res.Body)
		_ = res.Body.Close()
	}()

	if err := checkForHTTPError(res.StatusCode, req.URL.String()); err != nil {
		return nil, false, err
	}
	if res.StatusCode == http.StatusNoContent {
		return nil, false, nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false, err
	}
	cached := res.Header.Get(httpcache.XFromCache) != ""
	return body, cached, nil
}

func checkForHTTPError(statusCode int, url string) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return subsystems.TransportError{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("unexpected status %d from %s", statusCode, url),
	}
}
