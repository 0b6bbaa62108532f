// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

// Bootstrap makes owner the administrator and admits first as a Funded
// airline holding exactly the minimum funding. It may only be called once.
func (vm *VM) Bootstrap(owner, first ids.ShortID, name string) error {
	return vm.apply("bootstrap", func(time.Time) error {
		if vm.meta.Bootstrapped {
			return ErrAlreadyBootstrapped
		}
		if err := checkIdentity(owner, first); err != nil {
			return err
		}

		funding := vm.MinAirlineFunding.Int()
		if _, err := vm.ledger.Fund(first, funding); err != nil {
			return err
		}
		if err := vm.airlines.Seed(first, name); err != nil {
			return err
		}
		vm.meta.Owner = owner
		vm.meta.Bootstrapped = true
		vm.meta.Operational = true
		vm.metaDirty = true

		vm.log.Info("bootstrapped engine",
			log.Stringer("owner", owner),
			log.Stringer("airline", first),
			log.String("name", name),
		)
		vm.notify(Message{Type: AirlineRegistered, Participant: first})
		vm.notify(Message{Type: AirlineFunded, Participant: first, Amount: funding})
		return nil
	})
}

// SetOperational switches mutating operations on or off. Only the owner may
// call it. Setting the current mode again is a no-op.
func (vm *VM) SetOperational(caller ids.ShortID, operational bool) error {
	return vm.apply("setOperational", func(time.Time) error {
		if err := vm.checkOwner(caller); err != nil {
			return err
		}
		if vm.meta.Operational == operational {
			return nil
		}
		vm.meta.Operational = operational
		vm.metaDirty = true

		vm.log.Info("operational mode changed",
			log.Bool("operational", operational),
		)
		vm.notify(Message{Type: OperationalChanged, Participant: caller})
		return nil
	})
}

// PruneRequests drops finalized, closed and expired status requests and
// returns how many were removed. Only the owner may call it; it is allowed
// while paused.
func (vm *VM) PruneRequests(caller ids.ShortID) (int, error) {
	var pruned int
	err := vm.apply("pruneRequests", func(now time.Time) error {
		if err := vm.checkOwner(caller); err != nil {
			return err
		}
		pruned = vm.oracles.Prune(now)
		return nil
	})
	return pruned, err
}

func (vm *VM) IsOperational() bool {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.meta.Bootstrapped && vm.meta.Operational
}

func (vm *VM) IsBootstrapped() bool {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.meta.Bootstrapped
}

func (vm *VM) Owner() ids.ShortID {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.meta.Owner
}

// Reserve returns the wei held by the engine.
func (vm *VM) Reserve() *uint256.Int {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	if !vm.initialized() {
		return new(uint256.Int)
	}
	return vm.ledger.Reserve()
}
