package gologger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const LevelTrace = slog.LevelDebug - 4

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ParseLevel maps trace, debug, info, warn and error to slog levels.
// Unknown values fall back to info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SlogProvider hands out named glog loggers backed by one slog handler.
type SlogProvider struct {
	handler slog.Handler
	exit    func(int)
}

// NewSlogProvider writes JSON records to w at the given level. A nil
// writer means stderr.
func NewSlogProvider(w io.Writer, level slog.Level) *SlogProvider {
	if w == nil {
		w = os.Stderr
	}
	return NewSlogProviderWithHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func NewSlogProviderWithHandler(handler slog.Handler) *SlogProvider {
	return &SlogProvider{handler: handler, exit: os.Exit}
}

func (p *SlogProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.handler == nil {
		return glog.Nop()
	}
	base := slog.New(p.handler)
	if name = strings.TrimSpace(name); name != "" {
		base = base.With("logger", name)
	}
	return &SlogLogger{logger: base, ctx: context.Background(), exit: p.exit}
}

// SlogLogger adapts *slog.Logger to the glog logger contracts.
type SlogLogger struct {
	logger *slog.Logger
	ctx    context.Context
	exit   func(int)
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger, ctx: context.Background(), exit: os.Exit}
}

func (l *SlogLogger) Trace(msg string, args ...any) {
	l.log(LevelTrace, msg, args)
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args)
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args)
}

// Fatal logs at error level and exits the process.
func (l *SlogLogger) Fatal(msg string, args ...any) {
	l.log(slog.LevelError, msg, args)
	if l.exit != nil {
		l.exit(1)
	}
}

func (l *SlogLogger) WithContext(ctx context.Context) glog.Logger {
	if ctx == nil {
		return l
	}
	next := *l
	next.ctx = ctx
	return &next
}

// WithFields attaches fields in key order.
func (l *SlogLogger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	next := *l
	next.logger = l.logger.With(args...)
	return &next
}

func (l *SlogLogger) log(level slog.Level, msg string, args []any) {
	if l == nil || l.logger == nil {
		return
	}
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	l.logger.Log(ctx, level, msg, args...)
}

var (
	_ glog.Logger         = (*SlogLogger)(nil)
	_ glog.FieldsLogger   = (*SlogLogger)(nil)
	_ glog.LoggerProvider = (*SlogProvider)(nil)
)
