// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package health

import "github.com/prometheus/client_golang/prometheus"

type healthMetrics struct {
	// failing is 1 while the last check failed
	failing prometheus.Gauge
	checks  *prometheus.CounterVec
}

func newMetrics(registerer prometheus.Registerer) (*healthMetrics, error) {
	m := &healthMetrics{
		failing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "surety",
			Name:      "health_check_failing",
			Help:      "1 if the last health check failed",
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surety",
			Name:      "health_checks_total",
			Help:      "Number of health checks, by result",
		}, []string{"result"}),
	}
	if err := registerer.Register(m.failing); err != nil {
		return nil, err
	}
	return m, registerer.Register(m.checks)
}

func (m *healthMetrics) observe(healthy bool) {
	if healthy {
		m.failing.Set(0)
		m.checks.WithLabelValues("healthy").Inc()
		return
	}
	m.failing.Set(1)
	m.checks.WithLabelValues("unhealthy").Inc()
}
