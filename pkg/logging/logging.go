// Package logging builds the zap loggers used by the probe and the trace link.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Pretty selects the colored console encoder instead of JSON
	Pretty bool
	// Debug adds caller information and development assertions
	Debug bool
	Level zapcore.LevelEnabler
	// Output defaults to stdout
	Output zapcore.WriteSyncer

	ServiceVersion string
}

func New(opts Options) *zap.Logger {
	output := opts.Output
	if output == nil {
		output = zapcore.AddSync(os.Stdout)
	}
	level := opts.Level
	if level == nil {
		level = zapcore.InfoLevel
	}

	encoder := jsonEncoder()
	if opts.Pretty {
		encoder = consoleEncoder()
	}

	logger := zap.New(zapcore.NewCore(encoder, output, level), coreOptions(opts.Debug)...)

	return withBaseFields(logger, opts.ServiceVersion)
}

func baseEncoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	ec.TimeKey = "time"
	return ec
}

func jsonEncoder() zapcore.Encoder {
	ec := baseEncoderConfig()
	ec.EncodeTime = zapcore.EpochMillisTimeEncoder
	return zapcore.NewJSONEncoder(ec)
}

func consoleEncoder() zapcore.Encoder {
	ec := baseEncoderConfig()
	ec.ConsoleSeparator = " "
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	return zapcore.NewConsoleEncoder(ec)
}

func withBaseFields(logger *zap.Logger, serviceVersion string) *zap.Logger {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	fields := []zap.Field{
		zap.String("hostname", host),
		zap.Int("pid", os.Getpid()),
	}
	if serviceVersion != "" {
		fields = append(fields, zap.String("service_version", serviceVersion))
	}

	return logger.With(fields...)
}

func coreOptions(debug bool) []zap.Option {
	var opts []zap.Option

	if debug {
		opts = append(opts, zap.AddCaller(), zap.Development())
	}

	// Stacktrace is included on logs of ErrorLevel and above.
	opts = append(opts, zap.AddStacktrace(zap.ErrorLevel))

	return opts
}

// ParseLevel parses a case insensitive level name.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO", "":
		return zapcore.InfoLevel, nil
	case "WARNING", "WARN":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "FATAL":
		return zapcore.FatalLevel, nil
	case "PANIC":
		return zapcore.PanicLevel, nil
	default:
		return zapcore.InvalidLevel, fmt.Errorf("unknown log level: %s", level)
	}
}
