package wakeword

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/aida/core/wakeword"

var (
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var detectionCounter, _ = meter.Int64Counter("aida.wakeword.detections",
	metric.WithDescription("Wake word detections"))
