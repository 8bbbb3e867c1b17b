package stream

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/enoch-sit/project-1-xx/internal/stream"

var tracer = otel.Tracer(scopeName)
