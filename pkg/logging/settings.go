package logging

import (
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Settings controls the internal logger used for lifecycle events.
type Settings struct {
	// Level is one of debug, info, warn or error. Unknown names fall back to info.
	Level string
	// Format is json or text.
	Format string
	// Adapter is slog, zap, zerolog or std.
	Adapter string
	// SampleRatio keeps that fraction of debug and info events. Zero or less
	// drops them; warnings and errors are never sampled.
	SampleRatio float64
	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultSettings returns JSON slog output at info level with no sampling.
func DefaultSettings() Settings {
	return Settings{
		Level:       "info",
		Format:      "json",
		Adapter:     "slog",
		SampleRatio: 1.0,
	}
}

// FromSettings builds an Adapter from logging settings.
func FromSettings(cfg Settings) Adapter {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = LevelInfo
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	text := strings.EqualFold(cfg.Format, "text")

	return newLeveled(buildBackend(cfg.Adapter, out, level, text), level, sampler(cfg.SampleRatio))
}

func buildBackend(name string, out io.Writer, level Level, text bool) backend {
	switch strings.ToLower(name) {
	case "std":
		return stdBackend{logger: log.New(out, "", log.LstdFlags)}
	case "zap":
		encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		if text {
			encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		}

		return zapBackend{logger: zap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), zapLevel(level)))}
	case "zerolog":
		writer := out
		if text {
			writer = zerolog.ConsoleWriter{Out: out}
		}

		return zerologBackend{logger: zerolog.New(writer).Level(zerologLevel(level)).With().Timestamp().Logger()}
	default:
		opts := &slog.HandlerOptions{Level: slogLevel(level)}
		if text {
			return slogBackend{logger: slog.New(slog.NewTextHandler(out, opts))}
		}

		return slogBackend{logger: slog.New(slog.NewJSONHandler(out, opts))}
	}
}

func sampler(ratio float64) func() bool {
	switch {
	case ratio >= 1:
		return nil
	case ratio <= 0:
		return func() bool { return false }
	default:
		return func() bool { return rand.Float64() < ratio }
	}
}
