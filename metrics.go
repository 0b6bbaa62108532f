// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/surety/airline"
	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/utils/wrappers"
)

const (
	namespace = "surety"
	resultOK  = "ok"
)

type metrics struct {
	operations   *prometheus.CounterVec
	reserve      prometheus.Gauge
	openRequests prometheus.Gauge
	airlines     *prometheus.GaugeVec
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Number of operations applied, by result",
		}, []string{"op", "result"}),
		reserve: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reserve_wei",
			Help:      "Wei held by the engine",
		}),
		openRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_requests",
			Help:      "Number of unresolved status requests",
		}),
		airlines: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "airlines",
			Help:      "Number of admitted airlines, by status",
		}, []string{"status"}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.operations),
		registerer.Register(m.reserve),
		registerer.Register(m.openRequests),
		registerer.Register(m.airlines),
	)
	return m, errs.Err
}

// observe counts op under its failure kind, or ok.
func (m *metrics) observe(op string, err error) {
	result := resultOK
	if err != nil {
		result = failure.KindOf(err).String()
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *metrics) update(reserve *uint256.Int, openRequests, admitted, funded int) {
	wei, _ := new(big.Float).SetInt(reserve.ToBig()).Float64()
	m.reserve.Set(wei)
	m.openRequests.Set(float64(openRequests))
	m.airlines.WithLabelValues(airline.Registered.String()).Set(float64(admitted - funded))
	m.airlines.WithLabelValues(airline.Funded.String()).Set(float64(funded))
}
