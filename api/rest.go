// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	stdjson "encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/flight"
)

type restHandler struct {
	service *Service
}

type errorReply struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type flightDetailReply struct {
	FlightReply
	Policies []PolicyReply `json:"policies"`
}

// NewRESTHandler serves read only views of engine:
//
//	GET /status
//	GET /airlines
//	GET /flights[?airline=<id>]
//	GET /flights/{key}
//	GET /requests/open
func NewRESTHandler(engine Engine, logger log.Logger) http.Handler {
	h := &restHandler{
		service: &Service{
			engine: engine,
			log:    logger,
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/status", h.status).Methods(http.MethodGet)
	router.HandleFunc("/airlines", h.airlines).Methods(http.MethodGet)
	router.HandleFunc("/flights", h.flights).Methods(http.MethodGet)
	router.HandleFunc("/flights/{key}", h.flight).Methods(http.MethodGet)
	router.HandleFunc("/requests/open", h.openRequests).Methods(http.MethodGet)
	return router
}

func (h *restHandler) status(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, h.service.status())
}

func (h *restHandler) airlines(w http.ResponseWriter, _ *http.Request) {
	engine := h.service.engine
	records := engine.ListAirlines()
	airlines := make([]AirlineReply, len(records))
	for i, record := range records {
		airlines[i] = newAirlineReply(record, engine.GetFunds(record.ID))
	}
	h.write(w, http.StatusOK, airlines)
}

func (h *restHandler) flights(w http.ResponseWriter, r *http.Request) {
	filter := ids.ShortEmpty
	if airline := r.URL.Query().Get("airline"); airline != "" {
		id, err := parseShortID("airline", airline)
		if err != nil {
			h.fail(w, http.StatusBadRequest, err)
			return
		}
		filter = id
	}

	records := h.service.engine.ListFlights(filter)
	flights := make([]FlightReply, len(records))
	for i, record := range records {
		flights[i] = newFlightReply(record)
	}
	h.write(w, http.StatusOK, flights)
}

func (h *restHandler) flight(w http.ResponseWriter, r *http.Request) {
	key, err := parseID("key", mux.Vars(r)["key"])
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	engine := h.service.engine
	record, ok := engine.GetFlight(key)
	if !ok {
		h.fail(w, http.StatusNotFound, flight.ErrUnknownFlight)
		return
	}

	policies := engine.PoliciesFor(key)
	reply := flightDetailReply{
		FlightReply: newFlightReply(record),
		Policies:    make([]PolicyReply, len(policies)),
	}
	for i, policy := range policies {
		reply.Policies[i] = newPolicyReply(policy)
	}
	h.write(w, http.StatusOK, reply)
}

func (h *restHandler) openRequests(w http.ResponseWriter, _ *http.Request) {
	h.write(w, http.StatusOK, h.service.openRequests())
}

func (h *restHandler) fail(w http.ResponseWriter, status int, err error) {
	h.write(w, status, errorReply{
		Kind:    failure.KindOf(err).String(),
		Message: err.Error(),
	})
}

func (h *restHandler) write(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := stdjson.NewEncoder(w).Encode(v); err != nil {
		h.service.log.Debug("failed to write response",
			log.Err(err),
		)
	}
}
