package websearch

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/aida/core/websearch"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	searchCounter, _ = meter.Int64Counter("aida.websearch.queries",
		metric.WithDescription("Web search queries sent"))
	searchFailureCounter, _ = meter.Int64Counter("aida.websearch.failures",
		metric.WithDescription("Web search queries that did not produce an answer"))
)
