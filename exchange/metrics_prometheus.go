package exchange

import "github.com/prometheus/client_golang/prometheus"

// PrometheusMetricsOptions configures NewPrometheusMetrics.
type PrometheusMetricsOptions struct {
	Registerer  prometheus.Registerer
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
}

var _ MetricHook = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements MetricHook using Prometheus counters.
type PrometheusMetrics struct {
	cellsAllocated    *prometheus.CounterVec
	allocationsFailed *prometheus.CounterVec
	cellsConsumed     *prometheus.CounterVec
	handoffsRejected  *prometheus.CounterVec
}

var (
	cellLabelKeys     = []string{labelAllocator, labelDestructor}
	rejectedLabelKeys = []string{labelAllocator, labelDestructor, labelReason}
)

// NewPrometheusMetrics constructs a MetricHook backed by Prometheus counters.
func NewPrometheusMetrics(opts PrometheusMetricsOptions) (*PrometheusMetrics, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusMetrics{
		cellsAllocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "handoff_cells_allocated_total",
			Help:        "Number of cells allocated for handoff",
			ConstLabels: opts.ConstLabels,
		}, cellLabelKeys),
		allocationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "handoff_allocations_failed_total",
			Help:        "Number of cell allocations that failed",
			ConstLabels: opts.ConstLabels,
		}, cellLabelKeys),
		cellsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "handoff_cells_consumed_total",
			Help:        "Number of cells consumed and released by the native side",
			ConstLabels: opts.ConstLabels,
		}, cellLabelKeys),
		handoffsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "handoff_rejected_total",
			Help:        "Number of handoffs rejected before crossing the boundary",
			ConstLabels: opts.ConstLabels,
		}, rejectedLabelKeys),
	}

	var err error
	if p.cellsAllocated, err = registerCounterVec(reg, p.cellsAllocated); err != nil {
		return nil, err
	}
	if p.allocationsFailed, err = registerCounterVec(reg, p.allocationsFailed); err != nil {
		return nil, err
	}
	if p.cellsConsumed, err = registerCounterVec(reg, p.cellsConsumed); err != nil {
		return nil, err
	}
	if p.handoffsRejected, err = registerCounterVec(reg, p.handoffsRejected); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *PrometheusMetrics) CellAllocated(attrs map[string]string) {
	p.cellsAllocated.With(labels(attrs, cellLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) AllocationFailed(_ error, attrs map[string]string) {
	p.allocationsFailed.With(labels(attrs, cellLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) CellConsumed(attrs map[string]string) {
	p.cellsConsumed.With(labels(attrs, cellLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) HandoffRejected(reason string, _ error, attrs map[string]string) {
	labs := labels(attrs, rejectedLabelKeys...)
	labs[labelReason] = reason
	p.handoffsRejected.With(labs).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

func labels(attrs map[string]string, keys ...string) prometheus.Labels {
	labs := make(prometheus.Labels, len(keys))
	for _, key := range keys {
		labs[key] = attrs[key]
	}
	return labs
}
