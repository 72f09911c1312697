package deepgram

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/aida/core/speechtotext/deepgram"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	reconnectCounter, _ = meter.Int64Counter("aida.transcription.reconnects",
		metric.WithDescription("Reconnect attempts made after a lost transcription connection"))
	droppedFrameCounter, _ = meter.Int64Counter("aida.transcription.dropped_frames",
		metric.WithDescription("Outbound audio frames dropped because the send queue was full"))
	keepAliveCounter, _ = meter.Int64Counter("aida.transcription.keepalives",
		metric.WithDescription("KeepAlive control messages sent on idle connections"))
)
