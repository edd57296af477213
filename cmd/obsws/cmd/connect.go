package cmd

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tsarna/obsws/pkg/obsws/config"
	"github.com/tsarna/obsws/pkg/obsws/o11y"
	obswsotel "github.com/tsarna/obsws/pkg/obsws/otel"
	"github.com/tsarna/obsws/pkg/obsws/session"
)

// loadConfig builds the --config sources, or returns nil when none were given.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if len(o.configs) == 0 {
		return nil, nil
	}

	sources := make([]any, len(o.configs))
	for i, path := range o.configs {
		sources[i] = path
	}

	cfg, diags := config.NewConfig().WithSources(sources...).Build()
	if diags.HasErrors() {
		return nil, diags
	}
	return cfg, nil
}

// setup loads the config and builds the logger from it.
func (o *rootOptions) setup() (*config.Config, *zap.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := o.setupLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	return cfg, logger, nil
}

func isURI(target string) bool {
	return strings.Contains(target, "://")
}

// metrics returns the OpenTelemetry provider, or with --stats-interval an
// in-memory one whose snapshots are logged. stop flushes the last snapshot.
func (o *rootOptions) metrics(logger *zap.Logger) (provider o11y.MetricsProvider, stop func()) {
	if o.statsInterval <= 0 {
		return obswsotel.NewProvider("obsws", Version), func() {}
	}

	standalone := o11y.NewStandalone()
	standalone.StartReporting(o.statsInterval, func(snap o11y.Snapshot) {
		logger.Info("Session metrics",
			zap.Any("counters", snap.Counters),
			zap.Any("histograms", snap.Histograms),
			zap.Any("gauges", snap.Gauges))
	})
	return standalone, standalone.Stop
}

// sessionBuilder resolves target, a URI or a profile name, into a builder
// carrying the logger, telemetry and dialer. stop must be called once the
// session is done.
func (o *rootOptions) sessionBuilder(target string, cfg *config.Config, logger *zap.Logger) (b *session.SessionBuilder, stop func(), err error) {
	if isURI(target) {
		b = session.NewSession().WithURI(target)
	} else {
		if cfg == nil {
			return nil, nil, fmt.Errorf("%q is not a URI and no --config was given", target)
		}
		conn, ok := cfg.Connection(target)
		if !ok {
			return nil, nil, fmt.Errorf("unknown connection profile %q (known: %s)",
				target, strings.Join(cfg.ConnectionNames(), ", "))
		}
		b = conn.SessionBuilder()
	}

	metrics, stop := o.metrics(logger)
	b = b.WithLogger(logger).
		WithMetrics(metrics).
		WithTracing(obswsotel.NewProvider("obsws", Version))
	if o.dialer != nil {
		b = b.WithDialer(o.dialer)
	}
	return b, stop, nil
}
