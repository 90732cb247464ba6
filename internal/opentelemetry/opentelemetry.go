package opentelemetry

import (
	"go.opentelemetry.io/otel"
)

// DefaultMeter resolves through the global meter provider, so the
// instruments created from it start reporting once a provider is set.
var DefaultMeter = otel.Meter("github.com/cirruslabs/imagecache")
