// internal/logger/logger.go
package logger

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, console style and the JSON log file.
type Config struct {
	Development bool
	// Pretty switches the console to the compact colored encoder.
	Pretty bool
	// LogFile receives JSON lines; empty disables the file sink.
	LogFile       string
	FlushInterval time.Duration
}

// Logger extends zap.Logger with exchange context helpers.
type Logger struct {
	*zap.Logger
	file *SafeFileWriter
}

// New builds a tee of a console core on stdout and a JSON core on the log file.
func New(cfg Config) (*Logger, error) {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	level := zapcore.InfoLevel
	if cfg.Development {
		level = zapcore.DebugLevel
	}

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	if cfg.Pretty {
		consoleEncoder = PrettyEncoder()
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level),
	}

	var file *SafeFileWriter
	if cfg.LogFile != "" {
		var err error
		file, err = NewSafeFileWriter(cfg.LogFile, cfg.FlushInterval, zap.NewNop())
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), file, level))
	}

	return &Logger{
		Logger: zap.New(zapcore.NewTee(cores...),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		),
		file: file,
	}, nil
}

// WithOperation tags every line of one operation with a correlation id.
func (l *Logger) WithOperation(operation string) *zap.Logger {
	return WithOperation(l.Logger, operation)
}

// WithOperation is the free-function form for plain zap loggers.
func WithOperation(base *zap.Logger, operation string) *zap.Logger {
	return base.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.New().String()),
	)
}

// WithToken adds the token mint to log context.
func WithToken(base *zap.Logger, token solana.PublicKey) *zap.Logger {
	return base.With(zap.String("token", token.String()))
}

// Sync flushes all sinks. Stdout sync errors on terminals and pipes are ignored.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if err != nil && (errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)) {
		return nil
	}
	return err
}

// Close syncs and releases the log file.
func (l *Logger) Close() error {
	_ = l.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
