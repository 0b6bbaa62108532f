// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/surety/utils/json"
)

// ServiceName is the JSON-RPC service prefix, as in "surety.buyInsurance".
const ServiceName = "surety"

// NewRPCHandler returns the JSON-RPC server for engine. Request metrics are
// registered with registerer.
func NewRPCHandler(engine Engine, registerer prometheus.Registerer, logger log.Logger) (http.Handler, error) {
	metrics, err := newInterceptor(registerer)
	if err != nil {
		return nil, err
	}

	codec := json.NewCodec()
	server := rpc.NewServer()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	server.RegisterInterceptFunc(metrics.InterceptRequest)
	server.RegisterAfterFunc(metrics.AfterRequest)
	return server, server.RegisterService(&Service{
		engine: engine,
		log:    logger,
	}, ServiceName)
}
