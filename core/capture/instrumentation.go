package capture

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/aida/core/capture"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	framesCounter, _ = meter.Int64Counter("aida.capture.frames",
		metric.WithDescription("Frames read from the microphone"))
	fillerCounter, _ = meter.Int64Counter("aida.capture.filler_frames",
		metric.WithDescription("Silence filler frames sent in place of microphone audio"))
	silentCounter, _ = meter.Int64Counter("aida.capture.silent_frames",
		metric.WithDescription("Microphone frames counted towards the end of a turn"))
)
