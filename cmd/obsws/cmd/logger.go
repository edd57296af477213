package cmd

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tsarna/obsws/pkg/obsws/config"
)

// resolveLevel picks the log level. --debug wins, then --log-level, then
// the config's logging block. --verbose raises the default to info.
func (o *rootOptions) resolveLevel(cfg *config.Config) (zapcore.Level, error) {
	switch {
	case o.debug:
		return zapcore.DebugLevel, nil
	case o.logLevel != "":
		level, err := zapcore.ParseLevel(o.logLevel)
		if err != nil {
			return 0, fmt.Errorf("invalid --log-level: %w", err)
		}
		return level, nil
	case cfg != nil && cfg.Logging != nil:
		return cfg.Logging.Level, nil
	case o.verbose:
		return zapcore.InfoLevel, nil
	default:
		return zapcore.WarnLevel, nil
	}
}

func (o *rootOptions) setupLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := o.resolveLevel(cfg)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.Development = o.debug
	if cfg != nil && cfg.Logging != nil {
		zapConfig.Encoding = cfg.Logging.Encoding
		if zapConfig.Encoding == "console" {
			zapConfig.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		}
	}

	return zapConfig.Build()
}
