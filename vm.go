// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package surety implements a flight delay insurance engine.
//
// The VM owns every component and applies one operation at a time. An
// operation either commits all of its effects to the database or leaves the
// engine exactly as it was.
package surety

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luxfi/surety/airline"
	"github.com/luxfi/surety/api"
	"github.com/luxfi/surety/api/health"
	"github.com/luxfi/surety/config"
	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/insurance"
	"github.com/luxfi/surety/ledger"
	"github.com/luxfi/surety/oracle"
	"github.com/luxfi/surety/state"
	"github.com/luxfi/surety/utils/timer/mockable"
	"github.com/luxfi/surety/utils/units"
	"github.com/luxfi/surety/utils/wrappers"
)

// Version of the surety VM
const Version = "1.0.0"

var (
	ErrNotOperational      = failure.New(failure.NotOperational, "engine is not operational")
	ErrNotRunning          = failure.New(failure.NotOperational, "engine is not running")
	ErrUnauthorized        = failure.New(failure.Unauthorized, "caller is not the owner")
	ErrNotBootstrapped     = failure.New(failure.NotBootstrapped, "engine is not bootstrapped")
	ErrAlreadyBootstrapped = failure.New(failure.AlreadyBootstrapped, "engine is already bootstrapped")
	ErrEmptyIdentity       = failure.New(failure.InvalidArgument, "identity must be set")

	_ api.Engine = (*VM)(nil)
)

type VM struct {
	config.Config

	log   log.Logger
	clock mockable.Clock
	// indexSource defaults to a keccak source seeded with IndexSeed
	indexSource oracle.IndexSource

	registerer prometheus.Registerer
	metrics    *metrics

	// lock is held for writing by every mutating operation, for its
	// validation, component updates and commit
	lock sync.RWMutex

	state     *state.State
	meta      state.Meta
	metaDirty bool
	stopped   bool

	ledger   *ledger.Ledger
	airlines *airline.Registry
	flights  *flight.Registry
	book     *insurance.Book
	oracles  *oracle.Consensus

	toEngine chan<- Message
	pending  []Message
}

// Initialize loads the engine from db. Notifications are sent to toEngine
// without blocking; a nil channel disables them.
func (vm *VM) Initialize(
	_ context.Context,
	db database.Database,
	registerer prometheus.Registerer,
	toEngine chan<- Message,
) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.log == nil {
		vm.log = log.NewNoOpLogger()
	}
	if err := vm.Config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if vm.indexSource == nil {
		vm.indexSource = oracle.NewKeccakSource([]byte(vm.IndexSeed))
	}

	m, err := newMetrics(registerer)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	vm.metrics = m
	vm.registerer = registerer
	vm.toEngine = toEngine

	vm.state = state.New(db)
	snap, err := vm.state.Load()
	if err != nil {
		return errors.Join(
			fmt.Errorf("failed to load state: %w", err),
			vm.state.Close(),
		)
	}
	vm.restore(snap)
	vm.updateMetrics()

	admitted, funded := vm.airlines.Counts()
	vm.log.Info("initialized surety VM",
		log.Stringer("state", vm.lifecycle()),
		log.Int("admitted", admitted),
		log.Int("funded", funded),
		log.Int("flights", vm.flights.Len()),
		log.Int("policies", vm.book.Len()),
		log.Int("oracles", vm.oracles.OracleCount()),
	)
	return nil
}

// Shutdown closes the state. The database passed to Initialize is left
// open.
func (vm *VM) Shutdown(context.Context) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if vm.state == nil || vm.stopped {
		return nil
	}
	vm.stopped = true
	vm.log.Info("shutting down surety VM")
	return vm.state.Close()
}

func (*VM) Version(context.Context) (string, error) {
	return Version, nil
}

// State returns the lifecycle state.
func (vm *VM) State() State {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	return vm.lifecycle()
}

// HealthCheck reports the engine's state. A paused engine is healthy.
func (vm *VM) HealthCheck(context.Context) (interface{}, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()

	current := vm.lifecycle()
	health := map[string]interface{}{
		"state":   current.String(),
		"version": Version,
	}
	if current == Unknown || current == Stopped {
		return health, ErrNotRunning
	}
	health["openRequests"] = vm.oracles.OpenCount()
	health["reserve"] = units.Format(vm.ledger.Reserve())
	return health, nil
}

// CreateHandlers returns the JSON-RPC service at /rpc, the read only REST
// surface at /v1 and the health check at /health.
func (vm *VM) CreateHandlers(context.Context) (map[string]http.Handler, error) {
	rpcHandler, err := api.NewRPCHandler(vm, vm.registerer, vm.log)
	if err != nil {
		return nil, err
	}
	healthHandler, err := health.NewHandler(vm, vm.registerer, vm.log)
	if err != nil {
		return nil, err
	}
	return map[string]http.Handler{
		"/rpc":    rpcHandler,
		"/v1":     api.NewRESTHandler(vm, vm.log),
		"/health": healthHandler,
	}, nil
}

// Clock exposes the VM's clock so tests can move request expiry forward.
func (vm *VM) Clock() *mockable.Clock {
	return &vm.clock
}

// initialized reports whether Initialize has built the components. Queries
// on an uninitialized VM answer with empty results.
func (vm *VM) initialized() bool {
	return vm.state != nil
}

func (vm *VM) lifecycle() State {
	switch {
	case vm.stopped:
		return Stopped
	case !vm.initialized():
		return Unknown
	case !vm.meta.Bootstrapped:
		return Bootstrapping
	case !vm.meta.Operational:
		return Paused
	default:
		return NormalOp
	}
}

// restore replaces every component with one built from snap.
func (vm *VM) restore(snap *state.Snapshot) {
	vm.meta = snap.Meta
	vm.metaDirty = false

	vm.ledger = ledger.Restore(snap.Accounts, &snap.Meta.Reserve)

	vm.airlines = airline.NewRegistry(vm.ConsensusThreshold, vm.MinAirlineFunding.Int(), vm.ledger)
	vm.airlines.Restore(snap.Airlines)

	vm.flights = flight.NewRegistry(vm.airlines)
	vm.flights.Restore(snap.Flights)

	vm.book = insurance.NewBook(insurance.Terms{
		Cap:         *vm.InsuranceCap.Int(),
		Numerator:   vm.PayoutNumerator,
		Denominator: vm.PayoutDenominator,
		Covered: func(status flight.Status) bool {
			return vm.IsPayoutStatus(uint8(status))
		},
	}, vm.flights, vm.ledger)
	vm.book.Restore(snap.Policies)

	vm.oracles = oracle.New(oracle.Config{
		Fee:                  *vm.OracleRegistrationFee.Int(),
		IndexSpace:           vm.OracleIndexSpace,
		IndexCount:           vm.OracleIndexCount,
		Quorum:               vm.ResponseQuorum,
		TTL:                  vm.RequestTTL,
		RejectUnknownFlights: vm.RejectUnknownFlightRequests,
	}, vm.indexSource, vm.flights, vm.book)
	vm.oracles.Restore(snap.Oracles, snap.Requests, snap.Meta.IndexNonce)
}

// apply runs fn as one operation. Either all of fn's effects are committed
// or none are.
func (vm *VM) apply(op string, fn func(now time.Time) error) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if !vm.initialized() || vm.stopped {
		return ErrNotRunning
	}

	err := vm.execute(fn)
	vm.metrics.observe(op, err)
	if err != nil {
		vm.pending = vm.pending[:0]
		vm.log.Debug("operation rejected",
			log.String("op", op),
			log.Stringer("kind", failure.KindOf(err)),
			log.Err(err),
		)
		return err
	}

	vm.log.Debug("operation applied",
		log.String("op", op),
	)
	vm.updateMetrics()
	vm.flush()
	return nil
}

func (vm *VM) execute(fn func(now time.Time) error) error {
	if err := fn(vm.clock.Time()); err != nil {
		if vm.dirty() {
			if rollbackErr := vm.rollback(); rollbackErr != nil {
				return errors.Join(err, rollbackErr)
			}
		}
		return err
	}

	if err := vm.commit(); err != nil {
		vm.log.Error("failed to commit operation",
			log.Err(err),
		)
		if rollbackErr := vm.rollback(); rollbackErr != nil {
			return errors.Join(err, rollbackErr)
		}
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (vm *VM) dirty() bool {
	return vm.metaDirty ||
		vm.ledger.Dirty() ||
		vm.airlines.Dirty() ||
		vm.flights.Dirty() ||
		vm.book.Dirty() ||
		vm.oracles.Dirty()
}

// commit writes every modified record and the meta record.
func (vm *VM) commit() error {
	if !vm.dirty() {
		return nil
	}

	errs := wrappers.Errs{}
	accounts, _ := vm.ledger.Changes()
	for i := range accounts {
		errs.Add(vm.state.PutAccount(&accounts[i]))
	}
	airlines := vm.airlines.Changes()
	for i := range airlines {
		errs.Add(vm.state.PutAirline(&airlines[i]))
	}
	flights := vm.flights.Changes()
	for i := range flights {
		errs.Add(vm.state.PutFlight(&flights[i]))
	}
	policies := vm.book.Changes()
	for i := range policies {
		errs.Add(vm.state.PutPolicy(&policies[i]))
	}
	oracles, requests, removed, _ := vm.oracles.Changes()
	for i := range oracles {
		errs.Add(vm.state.PutOracle(&oracles[i]))
	}
	for i := range requests {
		errs.Add(vm.state.PutRequest(&requests[i]))
	}
	for _, key := range removed {
		errs.Add(vm.state.DeleteRequest(key))
	}

	vm.meta.Reserve = *vm.ledger.Reserve()
	vm.meta.IndexNonce = vm.oracles.Nonce()
	errs.Add(vm.state.PutMeta(&vm.meta))
	if errs.Errored() {
		return errs.Err
	}
	if err := vm.state.Commit(); err != nil {
		return err
	}

	vm.metaDirty = false
	vm.ledger.ClearChanges()
	vm.airlines.ClearChanges()
	vm.flights.ClearChanges()
	vm.book.ClearChanges()
	vm.oracles.ClearChanges()
	return nil
}

// rollback discards pending writes and rebuilds the components from the
// last commit.
func (vm *VM) rollback() error {
	vm.state.Abort()
	snap, err := vm.state.Load()
	if err != nil {
		vm.log.Error("failed to reload state",
			log.Err(err),
		)
		return fmt.Errorf("failed to reload state: %w", err)
	}
	vm.restore(snap)
	return nil
}

func (vm *VM) notify(msg Message) {
	vm.pending = append(vm.pending, msg)
}

// flush hands committed notifications to the engine channel. Messages that
// do not fit are dropped.
func (vm *VM) flush() {
	defer func() {
		vm.pending = vm.pending[:0]
	}()
	if vm.toEngine == nil {
		return
	}
	for _, msg := range vm.pending {
		select {
		case vm.toEngine <- msg:
		default:
			vm.log.Warn("dropping notification",
				log.Stringer("type", msg.Type),
			)
		}
	}
}

func (vm *VM) updateMetrics() {
	admitted, funded := vm.airlines.Counts()
	vm.metrics.update(vm.ledger.Reserve(), vm.oracles.OpenCount(), admitted, funded)
}

func (vm *VM) checkOperational() error {
	if !vm.meta.Bootstrapped {
		return ErrNotBootstrapped
	}
	if !vm.meta.Operational {
		return ErrNotOperational
	}
	return nil
}

func (vm *VM) checkOwner(caller ids.ShortID) error {
	if !vm.meta.Bootstrapped {
		return ErrNotBootstrapped
	}
	if caller != vm.meta.Owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	return nil
}

func checkIdentity(participants ...ids.ShortID) error {
	for _, p := range participants {
		if p == ids.ShortEmpty {
			return ErrEmptyIdentity
		}
	}
	return nil
}
