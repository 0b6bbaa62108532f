// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/utils/wrappers"
)

type contextKey int

const requestTimestampKey contextKey = iota

// interceptor records per method request counts, errors and latency.
type interceptor struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newInterceptor(registerer prometheus.Registerer) (*interceptor, error) {
	i := &interceptor{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surety",
			Name:      "api_requests_total",
			Help:      "Number of JSON-RPC requests",
		}, []string{"method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surety",
			Name:      "api_request_errors_total",
			Help:      "Number of failed JSON-RPC requests",
		}, []string{"method", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "surety",
			Name:      "api_request_duration_seconds",
			Help:      "Time spent handling JSON-RPC requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(i.requests),
		registerer.Register(i.errors),
		registerer.Register(i.duration),
	)
	return i, errs.Err
}

func (*interceptor) InterceptRequest(i *rpc.RequestInfo) *http.Request {
	ctx := context.WithValue(i.Request.Context(), requestTimestampKey, time.Now())
	return i.Request.WithContext(ctx)
}

func (in *interceptor) AfterRequest(i *rpc.RequestInfo) {
	timestamp, ok := i.Request.Context().Value(requestTimestampKey).(time.Time)
	if !ok {
		return
	}

	in.requests.WithLabelValues(i.Method).Inc()
	in.duration.WithLabelValues(i.Method).Observe(time.Since(timestamp).Seconds())
	if i.Error != nil {
		in.errors.WithLabelValues(i.Method, errorKind(i.Error)).Inc()
	}
}

func errorKind(err error) string {
	var rpcErr *json2.Error
	if errors.As(err, &rpcErr) {
		if kind, ok := rpcErr.Data.(string); ok {
			return kind
		}
	}
	return failure.KindOf(err).String()
}
