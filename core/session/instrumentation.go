package session

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/aida/core/session"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	turnCounter, _ = meter.Int64Counter("aida.session.turns",
		metric.WithDescription("Turns started by a wake word"))
	fallbackCounter, _ = meter.Int64Counter("aida.session.fallback_replies",
		metric.WithDescription("Replies replaced by a fallback message"))
	handlerDuration, _ = meter.Float64Histogram("aida.session.handler_duration",
		metric.WithDescription("Time the handler took to produce a reply"),
		metric.WithUnit("s"))
)
