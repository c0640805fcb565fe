// Package logger configures slog and enriches records from context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"

	"github.com/sprite-ai/prlens/internal/config"
)

// Setup installs the default slog logger for cfg. Production writes JSON, or
// ships records over OTLP when an endpoint is configured; everything else
// writes text.
func Setup(cfg config.Config) {
	SetupTo(cfg, os.Stdout)
}

// SetupTo is Setup with local output going to w.
func SetupTo(cfg config.Config, w io.Writer) {
	slog.SetDefault(slog.New(newHandler(cfg, w)))
}

func newHandler(cfg config.Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level(cfg)}

	switch {
	case cfg.IsProduction() && cfg.OTel.Enabled():
		return NewTraceHandler(otelslog.NewHandler(
			cfg.OTel.ServiceName,
			otelslog.WithLoggerProvider(global.GetLoggerProvider()),
		))
	case cfg.IsProduction():
		return NewTraceHandler(slog.NewJSONHandler(w, opts))
	default:
		return NewTraceHandler(slog.NewTextHandler(w, opts))
	}
}

func level(cfg config.Config) slog.Level {
	var l slog.Level
	if cfg.LogLevel != "" && l.UnmarshalText([]byte(cfg.LogLevel)) == nil {
		return l
	}
	if cfg.IsDevelopment() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// TraceHandler adds trace ids and LogFields from the record's context.
type TraceHandler struct {
	slog.Handler
}

func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: h}
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	fields := GetLogFields(ctx)
	if fields.JobID != "" {
		r.AddAttrs(slog.String("job_id", fields.JobID))
	}
	if fields.Repo != "" {
		r.AddAttrs(slog.String("repo", fields.Repo))
	}
	if fields.PRNumber != 0 {
		r.AddAttrs(slog.Int("pr_number", fields.PRNumber))
	}
	if fields.MessageID != "" {
		r.AddAttrs(slog.String("message_id", fields.MessageID))
	}
	if fields.Component != "" {
		r.AddAttrs(slog.String("component", fields.Component))
	}

	return h.Handler.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}
