package exchange

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetricsOptions configures NewOTelMetrics.
type OTelMetricsOptions struct {
	MeterProvider          metric.MeterProvider
	Meter                  metric.Meter
	InstrumentationName    string
	InstrumentationVersion string
}

var _ MetricHook = (*OTelMetrics)(nil)

// OTelMetrics implements MetricHook using OpenTelemetry counters.
type OTelMetrics struct {
	meter             metric.Meter
	cellsAllocated    metric.Int64Counter
	allocationsFailed metric.Int64Counter
	cellsConsumed     metric.Int64Counter
	handoffsRejected  metric.Int64Counter
}

// NewOTelMetrics constructs a MetricHook that emits OpenTelemetry counter measurements.
func NewOTelMetrics(opts OTelMetricsOptions) (*OTelMetrics, error) {
	meter := opts.Meter
	if meter == nil {
		provider := opts.MeterProvider
		if provider == nil {
			provider = otel.GetMeterProvider()
		}
		name := opts.InstrumentationName
		if name == "" {
			name = "github.com/rocketbitz/handoff-go/exchange"
		}
		meter = provider.Meter(name, metric.WithInstrumentationVersion(opts.InstrumentationVersion))
	}

	cellsAllocated, err := meter.Int64Counter("handoff.cells.allocated")
	if err != nil {
		return nil, err
	}
	allocationsFailed, err := meter.Int64Counter("handoff.allocations.failed")
	if err != nil {
		return nil, err
	}
	cellsConsumed, err := meter.Int64Counter("handoff.cells.consumed")
	if err != nil {
		return nil, err
	}
	handoffsRejected, err := meter.Int64Counter("handoff.rejected")
	if err != nil {
		return nil, err
	}

	return &OTelMetrics{
		meter:             meter,
		cellsAllocated:    cellsAllocated,
		allocationsFailed: allocationsFailed,
		cellsConsumed:     cellsConsumed,
		handoffsRejected:  handoffsRejected,
	}, nil
}

// CellAllocated records a successful allocation.
func (o *OTelMetrics) CellAllocated(attrs map[string]string) {
	o.cellsAllocated.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

// AllocationFailed records an allocation that returned an error.
func (o *OTelMetrics) AllocationFailed(_ error, attrs map[string]string) {
	o.allocationsFailed.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

// CellConsumed records a cell consumed and released by the native side.
func (o *OTelMetrics) CellConsumed(attrs map[string]string) {
	o.cellsConsumed.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

// HandoffRejected records a handoff refused before crossing the boundary.
func (o *OTelMetrics) HandoffRejected(reason string, _ error, attrs map[string]string) {
	attributes := append(otelAttrs(attrs), attribute.String(labelReason, reason))
	o.handoffsRejected.Add(context.Background(), 1, metric.WithAttributes(attributes...))
}

func otelAttrs(attrs map[string]string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(labelAllocator, attrs[labelAllocator]),
		attribute.String(labelDestructor, attrs[labelDestructor]),
	}
}
