package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/koscakluka/aida/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// severityFilter drops records below min before they reach the exporter.
type severityFilter struct {
	sdklog.Processor
	min otellog.Severity
}

func (f severityFilter) OnEmit(ctx context.Context, record *sdklog.Record) error {
	if record.Severity() < f.min {
		return nil
	}
	return f.Processor.OnEmit(ctx, record)
}

// otelslog maps slog levels onto severities with an offset of 9
func severityOf(level slog.Level) otellog.Severity {
	return otellog.Severity(level + 9)
}

// installLogging routes both the default slog logger and the otelslog loggers
// of the core packages to out.
func installLogging(out io.Writer, level slog.Level) (func(context.Context) error, error) {
	exporter, err := stdoutlog.New(stdoutlog.WithWriter(out))
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(severityFilter{
		Processor: sdklog.NewSimpleProcessor(exporter),
		min:       severityOf(level),
	}))
	global.SetLoggerProvider(provider)

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return provider.Shutdown, nil
}

// installMetrics exports the otel instruments of the core packages through the
// prometheus registry.
func installMetrics(m *metrics.Metrics) (func(context.Context) error, error) {
	provider, err := m.MeterProvider()
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}
