// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package flight registers flights of funded airlines and records their
// finalized status.
package flight

import (
	"fmt"
	"sort"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/surety/failure"
)

var (
	ErrAirlineNotFunded = failure.New(failure.AirlineNotFunded, "airline is not funded")
	ErrDuplicateFlight  = failure.New(failure.DuplicateFlight, "flight is already registered")
	ErrUnknownFlight    = failure.New(failure.UnknownFlight, "flight is not registered")
	ErrFinalized        = failure.New(failure.FlightFinalized, "flight status is already final")
	ErrInvalidStatus    = failure.New(failure.InvalidStatus, "invalid flight status")
	ErrEmptyCode        = failure.New(failure.InvalidArgument, "flight code is empty")
)

// Airlines reports whether an airline may register flights.
type Airlines interface {
	IsFunded(ids.ShortID) bool
}

// Registry is not safe for concurrent use.
type Registry struct {
	airlines Airlines
	flights  map[ids.ID]*Flight
	seq      uint64

	dirty set.Set[ids.ID]
}

func NewRegistry(airlines Airlines) *Registry {
	return &Registry{
		airlines: airlines,
		flights:  make(map[ids.ID]*Flight),
		dirty:    set.NewSet[ids.ID](0),
	}
}

// Restore loads persisted flights into an empty registry.
func (r *Registry) Restore(flights []*Flight) {
	for _, f := range flights {
		flight := *f
		r.flights[flight.Key] = &flight
		r.seq = max(r.seq, flight.Seq)
	}
}

// Register creates a flight with status Unknown.
func (r *Registry) Register(airline ids.ShortID, code string, departure uint64) (Flight, error) {
	if code == "" {
		return Flight{}, ErrEmptyCode
	}
	if !r.airlines.IsFunded(airline) {
		return Flight{}, fmt.Errorf("%w: %s", ErrAirlineNotFunded, airline)
	}
	key := KeyOf(airline, code, departure)
	if _, ok := r.flights[key]; ok {
		return Flight{}, fmt.Errorf("%w: %s at %d", ErrDuplicateFlight, code, departure)
	}

	r.seq++
	f := &Flight{
		Key:       key,
		Airline:   airline,
		Code:      code,
		Departure: departure,
		Seq:       r.seq,
	}
	r.flights[key] = f
	r.dirty.Add(key)
	return *f, nil
}

// Get returns a copy of the flight.
func (r *Registry) Get(key ids.ID) (Flight, bool) {
	f, ok := r.flights[key]
	if !ok {
		return Flight{}, false
	}
	return *f, true
}

func (r *Registry) IsRegistered(key ids.ID) bool {
	_, ok := r.flights[key]
	return ok
}

// Status returns the flight's status.
func (r *Registry) Status(key ids.ID) (Status, error) {
	f, ok := r.flights[key]
	if !ok {
		return Unknown, ErrUnknownFlight
	}
	return f.Status, nil
}

// CheckFinalize returns an error unless a flight at key may be finalized
// with status. Unregistered keys are accepted.
func (r *Registry) CheckFinalize(key ids.ID, status Status) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}
	if f, ok := r.flights[key]; ok && f.Status != Unknown {
		return fmt.Errorf("%w: %s", ErrFinalized, f.Status)
	}
	return nil
}

// Finalize sets the status of a registered flight. It reports whether a
// flight was updated.
func (r *Registry) Finalize(key ids.ID, status Status, at uint64) (bool, error) {
	if err := r.CheckFinalize(key, status); err != nil {
		return false, err
	}
	f, ok := r.flights[key]
	if !ok {
		return false, nil
	}
	f.Status = status
	f.UpdatedAt = at
	r.dirty.Add(key)
	return true, nil
}

// List returns flights in registration order. A non-empty airline filter
// restricts the listing to that airline.
func (r *Registry) List(airline ids.ShortID) []Flight {
	flights := make([]Flight, 0, len(r.flights))
	for _, f := range r.flights {
		if airline != ids.ShortEmpty && f.Airline != airline {
			continue
		}
		flights = append(flights, *f)
	}
	sort.Slice(flights, func(i, j int) bool {
		return flights[i].Seq < flights[j].Seq
	})
	return flights
}

func (r *Registry) Len() int {
	return len(r.flights)
}

// Changes returns copies of the flights modified since ClearChanges.
func (r *Registry) Changes() []Flight {
	flights := make([]Flight, 0, r.dirty.Len())
	for key := range r.dirty {
		flights = append(flights, *r.flights[key])
	}
	return flights
}

func (r *Registry) Dirty() bool {
	return r.dirty.Len() > 0
}

func (r *Registry) ClearChanges() {
	r.dirty = set.NewSet[ids.ID](0)
}
