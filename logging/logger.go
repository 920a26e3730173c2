// Package logging builds the client's zap logger. Output goes to a rotating
// file in the home dir so log lines never interleave with terminal output.
package logging

import (
	"danyak/config"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing json lines to cfg.File, or to defaultPath
// when cfg.File is empty. The returned func flushes and closes the file.
func New(cfg config.LoggingConfig, defaultPath string) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}

	path := cfg.File
	if path == "" {
		path = defaultPath
	}
	if path == "" {
		return zap.NewNop(), func() {}, nil
	}

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(writer),
		zap.NewAtomicLevelAt(level),
	)

	logger := zap.New(core).Named("danyak")

	return logger, func() {
		_ = logger.Sync()
		_ = writer.Close()
	}, nil
}
