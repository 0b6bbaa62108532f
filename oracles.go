// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/oracle"
)

// RegistrationFee returns the exact fee an oracle pays to register.
func (vm *VM) RegistrationFee() *uint256.Int {
	return vm.OracleRegistrationFee.Int()
}

// RegisterOracle assigns indexes to id and escrows the fee.
func (vm *VM) RegisterOracle(id ids.ShortID, fee *uint256.Int) (oracle.Oracle, error) {
	var registered oracle.Oracle
	err := vm.apply("registerOracle", func(now time.Time) error {
		if err := vm.checkOperational(); err != nil {
			return err
		}
		if err := checkIdentity(id); err != nil {
			return err
		}

		var err error
		registered, err = vm.oracles.RegisterOracle(id, fee, now)
		if err != nil {
			return err
		}
		if err := vm.ledger.Escrow(fee); err != nil {
			return err
		}
		vm.log.Debug("oracle registered",
			log.Stringer("oracle", id),
			log.Reflect("indexes", registered.Indexes),
		)
		return nil
	})
	return registered, err
}

// GetMyIndexes fails with NotRegistered for unknown oracles.
func (vm *VM) GetMyIndexes(id ids.ShortID) ([]uint8, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return nil, ErrNotRunning
	}
	return vm.oracles.Indexes(id)
}

// RequestStatus opens a status request for a flight. If the drawn index
// already has an open request for the flight, that request is returned and
// created is false.
func (vm *VM) RequestStatus(
	requester ids.ShortID,
	airline ids.ShortID,
	code string,
	departure uint64,
) (oracle.Request, bool, error) {
	var (
		req     oracle.Request
		created bool
	)
	err := vm.apply("requestStatus", func(now time.Time) error {
		if err := vm.checkOperational(); err != nil {
			return err
		}
		var err error
		req, created, err = vm.oracles.RequestStatus(requester, airline, code, departure, now)
		if err != nil || !created {
			return err
		}
		vm.log.Debug("status requested",
			log.Stringer("request", req.Key),
			log.String("code", code),
			log.Uint64("departure", departure),
			log.Int("index", int(req.Index)),
		)
		vm.notify(Message{
			Type:        StatusRequested,
			Participant: airline,
			Key:         req.Key,
			Index:       req.Index,
		})
		return nil
	})
	return req, created, err
}

// SubmitResponse records oracleID's report of status. The response that
// brings a status to quorum finalizes the flight and credits its policies.
func (vm *VM) SubmitResponse(
	oracleID ids.ShortID,
	index uint8,
	airline ids.ShortID,
	code string,
	departure uint64,
	status flight.Status,
) (oracle.Outcome, error) {
	var outcome oracle.Outcome
	err := vm.apply("submitResponse", func(now time.Time) error {
		if err := vm.checkOperational(); err != nil {
			return err
		}
		var err error
		outcome, err = vm.oracles.Submit(oracleID, index, airline, code, departure, status, now)
		if err != nil {
			return err
		}

		vm.notify(Message{
			Type:        ResponseSubmitted,
			Participant: oracleID,
			Key:         outcome.Request.Key,
			Index:       index,
			Status:      status,
		})
		if !outcome.Finalized {
			return nil
		}

		flightKey := outcome.Request.Flight
		vm.log.Info("flight status finalized",
			log.String("code", code),
			log.Uint64("departure", departure),
			log.Stringer("status", status),
			log.Int("payouts", len(outcome.Payouts)),
		)
		vm.notify(Message{
			Type:        FlightStatusFinalized,
			Participant: airline,
			Key:         flightKey,
			Index:       index,
			Status:      status,
		})
		for _, payout := range outcome.Payouts {
			vm.notify(Message{
				Type:        PassengerCredited,
				Participant: payout.Passenger,
				Key:         flightKey,
				Amount:      payout.Amount,
			})
		}
		return nil
	})
	return outcome, err
}

// ListOpenRequests returns the requests oracles may still answer, oldest
// first.
func (vm *VM) ListOpenRequests() []oracle.Request {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return nil
	}
	return vm.oracles.ListOpen(vm.clock.Time())
}

// GetRequest returns the request at key and its current state.
func (vm *VM) GetRequest(key ids.ID) (oracle.Request, oracle.RequestState, bool) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return oracle.Request{}, oracle.Open, false
	}
	req, ok := vm.oracles.Request(key)
	if !ok {
		return req, oracle.Open, false
	}
	state, _ := vm.oracles.State(key, vm.clock.Time())
	return req, state, true
}
