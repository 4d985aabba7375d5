// Package bootstrap implements the strategies for acquiring the first full snapshot of
// configuration data before incremental polling begins.
package bootstrap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/subsystems"
)

// ServerStrategy bootstraps every namespace with a full initial fetch from the server.
//
// Each namespace is fetched with bounded retry: up to MaxRetries additional attempts
// with a fixed delay between them. An authentication or authorization failure aborts
// immediately without retrying. Failures are not isolated: if any namespace exhausts
// its attempts, the whole bootstrap fails.
type ServerStrategy struct {
	transport     subsystems.Transport
	environmentID string
	asOfTimestamp string
	maxRetries    uint64
	retryDelay    time.Duration
	loggers       ldlog.Loggers
}

// NewServerStrategy creates a ServerStrategy. maxRetries is the number of retries after
// the first attempt, so maxRetries=2 means up to 3 attempts in total.
func NewServerStrategy(
	transport subsystems.Transport,
	environmentID string,
	asOfTimestamp string,
	maxRetries int,
	retryDelay time.Duration,
	loggers ldlog.Loggers,
) *ServerStrategy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ServerStrategy{
		transport:     transport,
		environmentID: environmentID,
		asOfTimestamp: asOfTimestamp,
		maxRetries:    uint64(maxRetries),
		retryDelay:    retryDelay,
		loggers:       loggers,
	}
}

// Bootstrap fetches all namespaces concurrently and merges their families and cursors.
func (s *ServerStrategy) Bootstrap(ctx context.Context, namespaces []string) (subsystems.BootstrapResult, error) {
	s.loggers.Debugf("Bootstrapping from server for namespaces: %v", namespaces)

	var lock sync.Mutex
	var allFamilies []fcmodel.FigFamily
	cursors := make(map[string]string, len(namespaces))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, namespace := range namespaces {
		namespace := namespace
		group.Go(func() error {
			resp, err := s.fetchInitialWithRetry(groupCtx, namespace)
			if err != nil {
				return err
			}
			lock.Lock()
			allFamilies = append(allFamilies, resp.FigFamilies...)
			if resp.Cursor != "" {
				cursors[namespace] = resp.Cursor
			}
			lock.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return subsystems.BootstrapResult{}, err
	}

	return subsystems.BootstrapResult{FigFamilies: allFamilies, Cursors: cursors}, nil
}

func (s *ServerStrategy) fetchInitialWithRetry(
	ctx context.Context,
	namespace string,
) (fcmodel.InitialFetchResponse, error) {
	var resp fcmodel.InitialFetchResponse
	attempt := 0

	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewConstant(s.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		s.loggers.Infof("Fetching initial data for namespace %s (attempt %d)", namespace, attempt)

		var err error
		resp, err = s.transport.FetchInitial(ctx, namespace, s.environmentID, s.asOfTimestamp)
		if err == nil {
			return nil
		}
		if subsystems.IsAuthError(err) {
			s.loggers.Errorf("Authentication/authorization failed fetching namespace %s: %s", namespace, err)
			return err // not retryable
		}
		s.loggers.Warnf("Attempt %d to fetch initial data for namespace %s failed, will retry in %s: %s",
			attempt, namespace, s.retryDelay, err)
		return retry.RetryableError(err)
	})
	if err != nil {
		if subsystems.IsAuthError(err) {
			return fcmodel.InitialFetchResponse{}, err
		}
		return fcmodel.InitialFetchResponse{}, fmt.Errorf(
			"failed to fetch initial data for namespace %s after %d attempts: %w", namespace, attempt, err)
	}
	return resp, nil
}
