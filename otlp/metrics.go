// Copyright 2025-2026 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package otlp

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "slogotlp"

// metrics tracks shipper health. A nil *metrics records nothing.
type metrics struct {
	enqueued  prometheus.Counter
	delivered prometheus.Counter
	abandoned prometheus.Counter
	attempts  *prometheus.CounterVec
	queued    prometheus.Gauge
}

// newMetrics registers the transport collectors with reg. Collectors that are
// already registered (for example by a second Transport) are reused.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		enqueued: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_enqueued_total",
			Help:      "Log records added to the export queue.",
		})),
		delivered: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_delivered_total",
			Help:      "Log records accepted by the collector.",
		})),
		abandoned: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_requeued_total",
			Help:      "Log records returned to the queue after delivery was abandoned.",
		})),
		attempts: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "export_attempts_total",
			Help:      "Export POST attempts by outcome.",
		}, []string{"outcome"})),
		queued: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_length",
			Help:      "Log records currently waiting for export.",
		})),
	}
	return m
}

// register registers c, returning the existing collector when an identical
// one is already present.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) recordEnqueue(queueLen int) {
	if m == nil {
		return
	}
	m.enqueued.Inc()
	m.queued.Set(float64(queueLen))
}

func (m *metrics) recordAttempt(ok bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *metrics) recordDelivered(n, queueLen int) {
	if m == nil {
		return
	}
	m.delivered.Add(float64(n))
	m.queued.Set(float64(queueLen))
}

func (m *metrics) recordRequeued(n, queueLen int) {
	if m == nil {
		return
	}
	m.abandoned.Add(float64(n))
	m.queued.Set(float64(queueLen))
}
