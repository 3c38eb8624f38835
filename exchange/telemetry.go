package exchange

const (
	labelAllocator  = "allocator"
	labelDestructor = "destructor"
	labelReason     = "reason"
)

// MetricHook captures handoff telemetry events.
type MetricHook interface {
	CellAllocated(attrs map[string]string)
	AllocationFailed(err error, attrs map[string]string)
	CellConsumed(attrs map[string]string)
	HandoffRejected(reason string, err error, attrs map[string]string)
}

// TraceAttribute represents a tracing attribute attached to handoff spans or events.
type TraceAttribute struct {
	Key   string
	Value any
}

// Tracer starts spans that wrap a single handoff.
type Tracer interface {
	StartSpan(name string, attrs ...TraceAttribute) Span
}

// Span records handoff lifecycle, events, and errors for tracing systems.
type Span interface {
	End(err error)
	AddEvent(name string, attrs ...TraceAttribute)
	RecordError(err error)
}

func (e *Exchange) metricAttrs() map[string]string {
	return map[string]string{
		labelAllocator:  e.allocator.Family().String(),
		labelDestructor: e.destructor.Name(),
	}
}

func (e *Exchange) metricCellAllocated() {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.CellAllocated(e.metricAttrs())
}

func (e *Exchange) metricAllocationFailed(err error) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.AllocationFailed(err, e.metricAttrs())
}

func (e *Exchange) metricCellConsumed() {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.CellConsumed(e.metricAttrs())
}

func (e *Exchange) metricHandoffRejected(reason string, err error) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.HandoffRejected(reason, err, e.metricAttrs())
}

func (e *Exchange) startHandoffSpan() Span {
	if e == nil || e.tracer == nil {
		return nil
	}
	return e.tracer.StartSpan("handoff-exchange",
		TraceAttribute{Key: "component", Value: "handoff-exchange"},
		TraceAttribute{Key: labelAllocator, Value: e.allocator.Family().String()},
		TraceAttribute{Key: labelDestructor, Value: e.destructor.Name()},
	)
}

func (e *Exchange) finishSpan(span Span, err error) {
	if span == nil {
		return
	}
	span.End(err)
}

func spanAddEvent(span Span, name string, fields ...logField) {
	if span == nil {
		return
	}
	span.AddEvent(name, attributesFromFields(fields...)...)
}

func spanRecordError(span Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
}

func attributesFromFields(fields ...logField) []TraceAttribute {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]TraceAttribute, 0, len(fields))
	for _, field := range fields {
		if field.key == "" {
			continue
		}
		attrs = append(attrs, TraceAttribute{Key: field.key, Value: field.value})
	}
	return attrs
}
