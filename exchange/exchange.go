package exchange

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rocketbitz/handoff-go/ownership"
)

var (
	// ErrClosed indicates the exchange has already been closed.
	ErrClosed = errors.New("handoff exchange: closed")
	// ErrUnexpectedValue indicates a freshly allocated cell did not hold ownership.InitialValue.
	ErrUnexpectedValue = errors.New("handoff exchange: unexpected cell value")
)

// readCell loads a cell's value before the handoff; tests replace it.
var readCell = (*ownership.Cell).Value

// Config controls how New builds an Exchange.
type Config struct {
	// Allocator produces cells. Defaults to ownership.MallocAllocator.
	Allocator ownership.Allocator
	// Destructor overrides the capability handed to the consumer. Defaults to
	// the allocator's own destructor; a different family simulates a
	// cross-allocator release and every handoff is rejected.
	Destructor       *ownership.Destructor
	Output           io.Writer
	Logger           Logger
	StructuredLogger StructuredLogger
	Tracer           Tracer
	Metrics          MetricHook
}

// Exchange allocates cells and hands them, with a destructor, to the native
// consumer.
type Exchange struct {
	allocator  ownership.Allocator
	destructor ownership.Destructor
	output     io.Writer
	closed     atomic.Bool

	logger           Logger
	structuredLogger StructuredLogger
	tracer           Tracer
	metrics          MetricHook
	stats            exchangeStats
}

// Logger provides printf-style debug logging hooks for the exchange.
type Logger interface {
	Debugf(format string, args ...any)
}

// StructuredLogger emits key/value pairs for structured logging backends.
type StructuredLogger interface {
	Debugw(msg string, keyvals ...any)
}

// Stats contains counters for exchange operations.
type Stats struct {
	Allocated          uint64
	AllocationFailures uint64
	Consumed           uint64
	Rejected           uint64
}

type exchangeStats struct {
	allocated   atomic.Uint64
	allocFailed atomic.Uint64
	consumed    atomic.Uint64
	rejected    atomic.Uint64
}

// New validates cfg, applies defaults and returns a ready Exchange.
func New(cfg Config) (*Exchange, error) {
	if cfg.Allocator == nil {
		cfg.Allocator = ownership.MallocAllocator{}
	}
	dtor := cfg.Allocator.Destructor()
	if cfg.Destructor != nil {
		dtor = *cfg.Destructor
	}
	if !dtor.Valid() {
		return nil, fmt.Errorf("handoff exchange: %w", ownership.ErrNoDestructor)
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	return &Exchange{
		allocator:        cfg.Allocator,
		destructor:       dtor,
		output:           cfg.Output,
		logger:           cfg.Logger,
		structuredLogger: cfg.StructuredLogger,
		tracer:           cfg.Tracer,
		metrics:          cfg.Metrics,
	}, nil
}

// Handoff allocates one cell, verifies its initial value and transfers it to
// the consumer. The consumed value is returned. When the consumer rejects the
// cell it is released with its own destructor before the error is returned.
func (e *Exchange) Handoff(ctx context.Context) (int32, error) {
	if e == nil {
		return 0, ErrClosed
	}
	if e.closed.Load() {
		return 0, ErrClosed
	}
	ctx = ensureContext(ctx)
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	span := e.startHandoffSpan()
	value, err := e.handoff(span)
	e.finishSpan(span, err)
	return value, err
}

func (e *Exchange) handoff(span Span) (int32, error) {
	cell, err := e.allocator.Allocate()
	if err != nil {
		e.stats.allocFailed.Add(1)
		e.recordFailure(span, "allocation_failed", err)
		e.metricAllocationFailed(err)
		return 0, err
	}
	e.stats.allocated.Add(1)
	e.logEvent("allocated")
	spanAddEvent(span, "allocated")
	e.metricCellAllocated()

	initial, err := readCell(cell)
	if err == nil && initial != ownership.InitialValue {
		err = fmt.Errorf("%w: got %d want %d", ErrUnexpectedValue, initial, ownership.InitialValue)
	}
	if err != nil {
		e.reject(span, cell, "unexpected_value", err)
		return 0, err
	}

	value, err := ownership.TakeOwnership(e.output, cell, e.destructor)
	if err != nil && cell.State() == ownership.StateAllocated {
		e.reject(span, cell, rejectReason(err), err)
		return 0, err
	}

	e.stats.consumed.Add(1)
	fields := []logField{logKV("value", value)}
	if err != nil {
		fields = append(fields, logKV("error", err))
	}
	e.logEvent("consumed", fields...)
	spanAddEvent(span, "consumed", fields...)
	e.metricCellConsumed()
	return value, err
}

func (e *Exchange) reject(span Span, cell *ownership.Cell, reason string, err error) {
	e.stats.rejected.Add(1)
	e.recordFailure(span, "rejected", err, logKV("reason", reason))
	e.metricHandoffRejected(reason, err)
	if relErr := cell.Release(); relErr != nil {
		e.logf("release after rejection failed: %v", relErr)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ownership.ErrAllocatorMismatch):
		return "allocator_mismatch"
	case errors.Is(err, ownership.ErrNoDestructor):
		return "no_destructor"
	case errors.Is(err, ownership.ErrUseAfterRelease):
		return "use_after_release"
	default:
		return "native_error"
	}
}

// Run performs count handoffs in sequence and reports how many completed. It
// stops at the first error or when ctx is cancelled.
func (e *Exchange) Run(ctx context.Context, count int) (int, error) {
	ctx = ensureContext(ctx)
	done := 0
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := e.Handoff(ctx); err != nil {
			return done, fmt.Errorf("handoff %d: %w", i, err)
		}
		done++
	}
	return done, nil
}

// Stats returns a snapshot of the exchange counters.
func (e *Exchange) Stats() Stats {
	if e == nil {
		return Stats{}
	}
	return Stats{
		Allocated:          e.stats.allocated.Load(),
		AllocationFailures: e.stats.allocFailed.Load(),
		Consumed:           e.stats.consumed.Load(),
		Rejected:           e.stats.rejected.Load(),
	}
}

// Allocator returns the allocator the exchange draws cells from.
func (e *Exchange) Allocator() ownership.Allocator {
	return e.allocator
}

// Destructor returns the capability handed to the consumer.
func (e *Exchange) Destructor() ownership.Destructor {
	return e.destructor
}

// Close marks the exchange closed. Cells are never held between handoffs, so
// there is nothing to release.
func (e *Exchange) Close() error {
	if e == nil {
		return nil
	}
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.logEvent("closed")
	return nil
}

type logField struct {
	key   string
	value any
}

func logKV(key string, value any) logField {
	return logField{key: key, value: value}
}

func (e *Exchange) baseFields() []logField {
	return []logField{
		logKV(labelAllocator, e.allocator.Family().String()),
		logKV(labelDestructor, e.destructor.Name()),
	}
}

func (e *Exchange) logEvent(event string, fields ...logField) {
	if e == nil {
		return
	}
	all := append(e.baseFields(), fields...)
	if e.structuredLogger != nil {
		kv := make([]any, 0, len(all)*2+2)
		kv = append(kv, "event", event)
		for _, field := range all {
			if field.key == "" {
				continue
			}
			kv = append(kv, field.key, field.value)
		}
		e.structuredLogger.Debugw("handoff exchange", kv...)
		return
	}
	if e.logger == nil {
		return
	}
	var b strings.Builder
	b.WriteString(event)
	for _, field := range all {
		if field.key == "" {
			continue
		}
		b.WriteString(" ")
		b.WriteString(field.key)
		b.WriteString("=")
		b.WriteString(fmt.Sprint(field.value))
	}
	e.logger.Debugf("handoff exchange %s", b.String())
}

func (e *Exchange) logf(format string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Debugf(format, args...)
}

func (e *Exchange) recordFailure(span Span, event string, err error, fields ...logField) {
	if err == nil {
		return
	}
	fields = append(fields, logKV("error", err))
	e.logEvent(event, fields...)
	spanAddEvent(span, event, fields...)
	spanRecordError(span, err)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
