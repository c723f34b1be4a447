package sinks

import (
	"context"
	"errors"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sharedspace/server/logging"
)

// Zap forwards events to a zap logger, mapping severities onto zap levels.
type Zap struct {
	logger *zap.Logger
}

// NewZap wraps an existing zap logger.
func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Zap{logger: logger}
}

// NewZapFromConfig builds a production or development zap logger.
func NewZapFromConfig(cfg logging.ZapConfig) (*Zap, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return NewZap(logger), nil
}

func (s *Zap) Write(event logging.Event) error {
	ce := s.logger.Check(zapLevel(event.Severity), string(event.Type))
	if ce == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 7)
	fields = append(fields,
		zap.String("category", event.Category),
		zap.String("actor", formatEntity(event.Actor)),
		zap.Time("eventTime", event.Time),
	)
	if event.Tick > 0 {
		fields = append(fields, zap.Uint64("tick", event.Tick))
	}
	if len(event.Targets) > 0 {
		fields = append(fields, zap.Any("targets", event.Targets))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	if len(event.Extra) > 0 {
		fields = append(fields, zap.Any("extra", event.Extra))
	}
	ce.Write(fields...)
	return nil
}

// Close flushes the zap logger. Sync on a terminal reports EINVAL/ENOTTY,
// which is not a real failure.
func (s *Zap) Close(context.Context) error {
	err := s.logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}

func zapLevel(sev logging.Severity) zapcore.Level {
	switch sev {
	case logging.SeverityDebug:
		return zapcore.DebugLevel
	case logging.SeverityWarn:
		return zapcore.WarnLevel
	case logging.SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
