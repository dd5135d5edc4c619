// Package metrics holds the process-wide counter registry. Counters are
// kept in a plain map so the HTTP surface can serve them as a JSON
// snapshot, and mirrored into a dedicated Prometheus registry for
// scrape-based collection.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter names emitted by intake, the worker pool and the appliers.
const (
	DepositRequestsTotal     = "payments_deposit_requests_total"
	WithdrawRequestsTotal    = "payments_withdraw_requests_total"
	TaskEnqueuedTotal        = "payments_task_enqueued_total"
	IdempotencyHitsTotal     = "idempotency_hits_total"
	ProcessingStartedTotal   = "payments_processing_started_total"
	GatewaySuccessTotal      = "gateway_success_total"
	GatewayErrorsTotal       = "gateway_errors_total"
	GatewayTimeoutsTotal     = "gateway_timeouts_total"
	GatewayNonRetryableTotal = "gateway_non_retryable_errors_total"
	PaymentsSuccessTotal     = "payments_success_total"
	PaymentsRetriedTotal     = "payments_retried_total"
	PaymentsFailedTotal      = "payments_failed_total"
	DLQWrittenTotal          = "dlq_written_total"
)

// Sink is the abstract counter sink consumed by the core. The worker and
// the intake services never see the concrete registry.
type Sink interface {
	Inc(name string)
	Add(name string, delta int64)
}

// Registry is a concurrent counter map. Access is mutex-guarded; counters
// are low-frequency aggregates so a single lock is enough.
type Registry struct {
	mu       sync.Mutex
	counters map[string]int64
	prom     map[string]prometheus.Counter
	reg      *prometheus.Registry
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]int64),
		prom:     make(map[string]prometheus.Counter),
		reg:      prometheus.NewRegistry(),
	}
}

func (r *Registry) Inc(name string) {
	r.Add(name, 1)
}

func (r *Registry) Add(name string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[name] += delta

	c, ok := r.prom[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{Name: name})
		r.reg.MustRegister(c)
		r.prom[name] = c
	}
	c.Add(float64(delta))
}

// Snapshot returns a copy of all counters.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64, len(r.counters))
	for name, v := range r.counters {
		out[name] = v
	}
	return out
}

// Handler serves the mirrored counters in Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
