package playback

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/aida/core/playback"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	playedBytesCounter, _ = meter.Int64Counter("aida.playback.bytes",
		metric.WithDescription("Synthesized audio bytes handed to the output device"),
		metric.WithUnit("By"))
	speechDuration, _ = meter.Float64Histogram("aida.playback.duration",
		metric.WithDescription("Time from speech request until the output drained"),
		metric.WithUnit("s"))
)
