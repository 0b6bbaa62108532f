// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

import (
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/surety/flight"
)

// RegisterFlight registers a flight operated by the calling airline.
func (vm *VM) RegisterFlight(caller ids.ShortID, code string, departure uint64) (flight.Flight, error) {
	var registered flight.Flight
	err := vm.apply("registerFlight", func(time.Time) error {
		if err := vm.checkOperational(); err != nil {
			return err
		}
		var err error
		registered, err = vm.flights.Register(caller, code, departure)
		if err != nil {
			return err
		}
		vm.log.Debug("flight registered",
			log.Stringer("airline", caller),
			log.String("code", code),
			log.Uint64("departure", departure),
		)
		vm.notify(Message{Type: FlightRegistered, Participant: caller, Key: registered.Key})
		return nil
	})
	return registered, err
}

func (vm *VM) GetFlight(key ids.ID) (flight.Flight, bool) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return flight.Flight{}, false
	}
	return vm.flights.Get(key)
}

// FlightStatus fails with UnknownFlight if key is not registered.
func (vm *VM) FlightStatus(key ids.ID) (flight.Status, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return flight.Unknown, ErrNotRunning
	}
	return vm.flights.Status(key)
}

func (vm *VM) IsFlightRegistered(key ids.ID) bool {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return false
	}
	return vm.flights.IsRegistered(key)
}

// ListFlights returns flights in registration order. ids.ShortEmpty lists
// every airline's flights.
func (vm *VM) ListFlights(airline ids.ShortID) []flight.Flight {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return nil
	}
	return vm.flights.List(airline)
}
