// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/surety/airline"
)

// RegisterAirline admits candidate on behalf of requester. Once the
// admission threshold is reached the call records requester's vote instead,
// and candidate is admitted when enough funded airlines have voted.
func (vm *VM) RegisterAirline(requester, candidate ids.ShortID, name string) (airline.Admission, error) {
	var admission airline.Admission
	err := vm.apply("registerAirline", func(time.Time) error {
		if err := vm.checkOperational(); err != nil {
			return err
		}
		if err := checkIdentity(candidate); err != nil {
			return err
		}

		var err error
		admission, err = vm.airlines.Register(candidate, requester, name)
		if err != nil {
			return err
		}
		if admission.Required > 0 {
			vm.notify(Message{Type: AirlineVoted, Participant: candidate})
		}
		if admission.Admitted {
			vm.log.Debug("airline admitted",
				log.Stringer("airline", candidate),
				log.Stringer("requester", requester),
				log.Int("votes", admission.Votes),
			)
			vm.notify(Message{Type: AirlineRegistered, Participant: candidate})
			if vm.airlines.IsFunded(candidate) {
				vm.notify(Message{Type: AirlineFunded, Participant: candidate})
			}
		}
		return nil
	})
	return admission, err
}

// FundAirline adds amount to caller's funding. caller must be admitted; it
// becomes Funded once its cumulative funding reaches the minimum.
func (vm *VM) FundAirline(caller ids.ShortID, amount *uint256.Int) (airline.Airline, error) {
	var record airline.Airline
	err := vm.apply("fundAirline", func(time.Time) error {
		if err := vm.checkOperational(); err != nil {
			return err
		}
		if err := vm.airlines.CheckFundable(caller); err != nil {
			return err
		}
		funded, err := vm.ledger.Fund(caller, amount)
		if err != nil {
			return err
		}
		if vm.airlines.Promote(caller) {
			vm.log.Debug("airline funded",
				log.Stringer("airline", caller),
				log.String("funds", funded.Dec()),
			)
			vm.notify(Message{Type: AirlineFunded, Participant: caller, Amount: funded})
		}
		record, _ = vm.airlines.Get(caller)
		return nil
	})
	return record, err
}

func (vm *VM) IsAirlineRegistered(id ids.ShortID) bool {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return false
	}
	return vm.airlines.IsRegistered(id)
}

func (vm *VM) IsAirlineFunded(id ids.ShortID) bool {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return false
	}
	return vm.airlines.IsFunded(id)
}

// AirlineVotes returns the number of votes cast for id's admission.
func (vm *VM) AirlineVotes(id ids.ShortID) int {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return 0
	}
	return vm.airlines.Votes(id)
}

func (vm *VM) GetAirline(id ids.ShortID) (airline.Airline, bool) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return airline.Airline{}, false
	}
	return vm.airlines.Get(id)
}

// AirlineCounts returns the number of admitted and funded airlines.
func (vm *VM) AirlineCounts() (admitted int, funded int) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return 0, 0
	}
	return vm.airlines.Counts()
}

func (vm *VM) ListAirlines() []airline.Airline {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return nil
	}
	return vm.airlines.List()
}

// GetFunds returns id's cumulative funding.
func (vm *VM) GetFunds(id ids.ShortID) *uint256.Int {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return new(uint256.Int)
	}
	return vm.ledger.Funds(id)
}
