// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/surety/insurance"
)

// BuyInsurance insures passenger on the flight at flightKey. The premium is
// escrowed; anything offered above the cap is returned as Receipt.Refund.
func (vm *VM) BuyInsurance(passenger ids.ShortID, flightKey ids.ID, offered *uint256.Int) (insurance.Receipt, error) {
	var receipt insurance.Receipt
	err := vm.apply("buyInsurance", func(time.Time) error {
		if err := vm.checkOperational(); err != nil {
			return err
		}
		if err := checkIdentity(passenger); err != nil {
			return err
		}

		var err error
		receipt, err = vm.book.Buy(passenger, flightKey, offered)
		if err != nil {
			return err
		}
		if err := vm.ledger.Escrow(&receipt.Policy.Premium); err != nil {
			return err
		}
		vm.log.Debug("insurance purchased",
			log.Stringer("passenger", passenger),
			log.Stringer("flight", flightKey),
			log.String("premium", receipt.Policy.Premium.Dec()),
			log.String("refund", receipt.Refund.Dec()),
		)
		vm.notify(Message{
			Type:        InsurancePurchased,
			Participant: passenger,
			Key:         flightKey,
			Amount:      receipt.Policy.Premium.Clone(),
		})
		return nil
	})
	return receipt, err
}

// Withdraw pays out participant's whole withdrawable balance.
func (vm *VM) Withdraw(participant ids.ShortID) (*uint256.Int, error) {
	var amount *uint256.Int
	err := vm.apply("withdraw", func(time.Time) error {
		if err := vm.checkOperational(); err != nil {
			return err
		}
		var err error
		amount, err = vm.ledger.Withdraw(participant)
		if err != nil {
			return err
		}
		vm.log.Debug("withdrawn",
			log.Stringer("participant", participant),
			log.String("amount", amount.Dec()),
		)
		vm.notify(Message{Type: Withdrawn, Participant: participant, Amount: amount.Clone()})
		return nil
	})
	return amount, err
}

func (vm *VM) GetPolicy(passenger ids.ShortID, flightKey ids.ID) (insurance.Policy, bool) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return insurance.Policy{}, false
	}
	return vm.book.Policy(passenger, flightKey)
}

// PoliciesFor returns the policies on flightKey in purchase order.
func (vm *VM) PoliciesFor(flightKey ids.ID) []insurance.Policy {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return nil
	}
	return vm.book.PoliciesFor(flightKey)
}

// GetBalance returns participant's withdrawable balance.
func (vm *VM) GetBalance(participant ids.ShortID) *uint256.Int {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return new(uint256.Int)
	}
	return vm.ledger.Balance(participant)
}
