package fcclient

import (
	"errors"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/fcmodel"
	"github.com/figchain/go-client-sdk/subsystems"
)

// DefaultShutdownGrace is how long Close waits for background work before abandoning it.
const DefaultShutdownGrace = 5 * time.Second

// Config holds the configuration for an FCClient. Namespaces and Transport are required;
// everything else has a usable default.
type Config struct {
	// Namespaces is the set of namespaces the client replicates. At least one is required.
	Namespaces []string

	// EnvironmentID identifies the environment whose configuration is fetched.
	EnvironmentID string

	// AsOfTimestamp optionally pins the initial fetch to a point in time, as an RFC 3339
	// timestamp. Empty means the latest data.
	AsOfTimestamp string

	// Transport is the wire protocol client. Required. Use fctransport.New for the
	// standard HTTP implementation.
	Transport subsystems.Transport

	// Bootstrap selects how the first full snapshot is acquired. Defaults to
	// fccomponents.ServerBootstrap().
	Bootstrap subsystems.BootstrapStrategyFactory

	// Polling selects how the replica is kept current after bootstrap. Defaults to
	// fccomponents.PollingDataSource() (fixed rate).
	Polling subsystems.PollingStrategyFactory

	// DefaultContext is merged under every per-call context. Optional.
	DefaultContext fcmodel.EvaluationContext

	// Decrypter decrypts envelope-encrypted payloads for PayloadFor. Optional; without
	// it, encrypted figs cannot be opened.
	Decrypter subsystems.PayloadDecrypter

	// ShutdownGrace bounds how long Close waits for background work. Defaults to
	// DefaultShutdownGrace.
	ShutdownGrace time.Duration

	// Loggers is the logging destination. The zero value logs to standard error.
	Loggers ldlog.Loggers
}

func (c Config) validate() error {
	if len(c.Namespaces) == 0 {
		return errors.New("at least one namespace must be configured")
	}
	if c.Transport == nil {
		return errors.New("a transport must be configured")
	}
	return nil
}

func (c Config) clientContext() subsystems.ClientContext {
	return subsystems.ClientContext{
		Namespaces:    c.Namespaces,
		EnvironmentID: c.EnvironmentID,
		AsOfTimestamp: c.AsOfTimestamp,
		Transport:     c.Transport,
		ShutdownGrace: c.ShutdownGrace,
		Loggers:       c.Loggers,
	}
}
