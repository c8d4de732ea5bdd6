// Package metrics exports Prometheus counters for batch decisions, lock
// operations and multipart completions.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer records LFS server telemetry. A nil *Observer is valid and records nothing.
type Observer struct {
	batchObjects  *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	lockOps       *prometheus.CounterVec
	completions   *prometheus.CounterVec
}

// New registers the LFS metrics with reg (the default registerer when nil)
func New(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "lfs"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	batchObjects, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_objects_total",
		Help:      "Objects processed by the batch API, by operation and outcome.",
	}, []string{"operation", "result"}))
	if err != nil {
		return nil, err
	}
	batchDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Latency of batch requests by selected transfer adapter.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"transfer"}))
	if err != nil {
		return nil, err
	}
	lockOps, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lock_operations_total",
		Help:      "Lock API calls by operation and HTTP status.",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	completions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "multipart_completions_total",
		Help:      "Multipart uploads finalised from completion sentinels.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	return &Observer{
		batchObjects:  batchObjects,
		batchDuration: batchDuration,
		lockOps:       lockOps,
		completions:   completions,
	}, nil
}

// register adds c to reg, reusing the existing collector when an identical
// one was registered earlier (e.g. by a second Observer in the same process)
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register lfs metric: %w", err)
	}
	return c, nil
}

// Batch object outcomes
const (
	ResultNoop      = "noop"
	ResultDownload  = "download"
	ResultUpload    = "upload"
	ResultMultipart = "multipart"
	ResultMissing   = "missing"
)

// RecordBatchObject counts one per-object decision
func (o *Observer) RecordBatchObject(operation, result string) {
	if o == nil {
		return
	}
	o.batchObjects.WithLabelValues(operation, result).Inc()
}

// RecordBatch observes the duration of a whole batch request
func (o *Observer) RecordBatch(transfer string, duration time.Duration) {
	if o == nil {
		return
	}
	o.batchDuration.WithLabelValues(transfer).Observe(duration.Seconds())
}

// RecordLockOperation counts a lock API call and its response status
func (o *Observer) RecordLockOperation(operation string, status int) {
	if o == nil {
		return
	}
	o.lockOps.WithLabelValues(operation, fmt.Sprint(status)).Inc()
}

// RecordCompletion counts a finalised (or failed) multipart upload
func (o *Observer) RecordCompletion(err error) {
	if o == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	o.completions.WithLabelValues(result).Inc()
}
