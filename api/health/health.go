// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package health serves the engine's health check over HTTP.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
)

const checkTimeout = 5 * time.Second

// Checker reports its health. A non-nil error marks it unhealthy; details are
// returned either way.
type Checker interface {
	HealthCheck(context.Context) (interface{}, error)
}

type Reply struct {
	Healthy   bool        `json:"healthy"`
	Details   interface{} `json:"details,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type handler struct {
	checker Checker
	log     log.Logger
	metrics *healthMetrics
}

// NewHandler returns a handler answering GET with the checker's Reply, with
// status 200 when healthy and 503 otherwise.
func NewHandler(checker Checker, registerer prometheus.Registerer, logger log.Logger) (http.Handler, error) {
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &handler{
		checker: checker,
		log:     logger,
		metrics: m,
	}, nil
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	details, err := h.checker.HealthCheck(ctx)
	reply := Reply{
		Healthy:   err == nil,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
	status := http.StatusOK
	if err != nil {
		reply.Error = err.Error()
		status = http.StatusServiceUnavailable
		h.log.Warn("health check failed",
			log.Err(err),
		)
	}
	h.metrics.observe(reply.Healthy)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		h.log.Debug("failed to write health reply",
			log.Err(err),
		)
	}
}
