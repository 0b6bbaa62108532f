// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package insurance records passenger policies against flights and credits
// them when a flight finalizes with a covered status.
package insurance

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/flight"
)

var (
	ErrUnknownFlight   = failure.New(failure.UnknownFlight, "flight is not registered")
	ErrDuplicatePolicy = failure.New(failure.DuplicatePolicy, "passenger already insured this flight")
	ErrFlightFinalized = failure.New(failure.FlightFinalized, "flight status is already final")
	ErrInvalidAmount   = failure.New(failure.InvalidAmount, "premium must be positive")
)

// Flights looks up registered flights.
type Flights interface {
	Get(ids.ID) (flight.Flight, bool)
}

// Ledger receives credits owed to passengers.
type Ledger interface {
	CreditWithdrawable(ids.ShortID, *uint256.Int) error
}

// Terms are the pricing rules of a Book.
type Terms struct {
	// Cap is the largest premium retained per policy.
	Cap uint256.Int
	// Credit is Numerator/Denominator of the premium, rounded down.
	Numerator   uint64
	Denominator uint64
	// Covered reports whether a final status pays out.
	Covered func(flight.Status) bool
}

// Book is not safe for concurrent use.
type Book struct {
	terms   Terms
	flights Flights
	ledger  Ledger

	policies map[ids.ID]map[ids.ShortID]*Policy
	count    int
	seq      uint64

	dirty set.Set[PolicyKey]
}

func NewBook(terms Terms, flights Flights, ledger Ledger) *Book {
	return &Book{
		terms:    terms,
		flights:  flights,
		ledger:   ledger,
		policies: make(map[ids.ID]map[ids.ShortID]*Policy),
		dirty:    set.NewSet[PolicyKey](0),
	}
}

// Restore loads persisted policies into an empty book.
func (b *Book) Restore(policies []*Policy) {
	for _, p := range policies {
		policy := *p
		b.insert(&policy)
		b.seq = max(b.seq, policy.Seq)
	}
}

// Quote splits offered into the premium retained and the refund owed to the
// payer.
func (b *Book) Quote(offered *uint256.Int) (premium *uint256.Int, refund *uint256.Int) {
	if offered.Gt(&b.terms.Cap) {
		return b.terms.Cap.Clone(), new(uint256.Int).Sub(offered, &b.terms.Cap)
	}
	return offered.Clone(), new(uint256.Int)
}

// Buy insures passenger on flightKey. Any amount offered above the cap is
// reported as Receipt.Refund and never retained.
func (b *Book) Buy(passenger ids.ShortID, flightKey ids.ID, offered *uint256.Int) (Receipt, error) {
	if offered.IsZero() {
		return Receipt{}, ErrInvalidAmount
	}
	f, ok := b.flights.Get(flightKey)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %s", ErrUnknownFlight, flightKey)
	}
	if f.Status != flight.Unknown {
		return Receipt{}, fmt.Errorf("%w: %s is %s", ErrFlightFinalized, f.Code, f.Status)
	}
	if _, ok := b.policies[flightKey][passenger]; ok {
		return Receipt{}, fmt.Errorf("%w: %s on %s", ErrDuplicatePolicy, passenger, f.Code)
	}

	premium, refund := b.Quote(offered)
	b.seq++
	p := &Policy{
		Flight:    flightKey,
		Passenger: passenger,
		Premium:   *premium,
		Seq:       b.seq,
	}
	b.insert(p)
	b.dirty.Add(p.Key())
	return Receipt{Policy: *p, Refund: refund}, nil
}

// CreditForFinalizedStatus credits every uncredited policy on flightKey if
// the flight's status is covered. Policies already credited are skipped, so
// repeated calls credit nothing further.
func (b *Book) CreditForFinalizedStatus(flightKey ids.ID) ([]Payout, error) {
	f, ok := b.flights.Get(flightKey)
	if !ok || !b.terms.Covered(f.Status) {
		return nil, nil
	}

	var payouts []Payout
	for _, p := range b.PoliciesFor(flightKey) {
		if !p.Credit.IsZero() {
			continue
		}
		credit := b.creditFor(&p.Premium)
		if err := b.ledger.CreditWithdrawable(p.Passenger, credit); err != nil {
			return payouts, err
		}
		stored := b.policies[flightKey][p.Passenger]
		stored.Credit = *credit
		b.dirty.Add(stored.Key())
		payouts = append(payouts, Payout{
			Passenger: p.Passenger,
			Flight:    flightKey,
			Amount:    credit,
		})
	}
	return payouts, nil
}

// Policy returns passenger's policy on flightKey.
func (b *Book) Policy(passenger ids.ShortID, flightKey ids.ID) (Policy, bool) {
	p, ok := b.policies[flightKey][passenger]
	if !ok {
		return Policy{}, false
	}
	return *p, true
}

// PoliciesFor returns the policies on flightKey in purchase order.
func (b *Book) PoliciesFor(flightKey ids.ID) []Policy {
	byPassenger := b.policies[flightKey]
	policies := make([]Policy, 0, len(byPassenger))
	for _, p := range byPassenger {
		policies = append(policies, *p)
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].Seq < policies[j].Seq
	})
	return policies
}

func (b *Book) Len() int {
	return b.count
}

// Changes returns copies of the policies modified since ClearChanges.
func (b *Book) Changes() []Policy {
	policies := make([]Policy, 0, b.dirty.Len())
	for key := range b.dirty {
		policies = append(policies, *b.policies[key.Flight][key.Passenger])
	}
	return policies
}

func (b *Book) Dirty() bool {
	return b.dirty.Len() > 0
}

func (b *Book) ClearChanges() {
	b.dirty = set.NewSet[PolicyKey](0)
}

func (b *Book) creditFor(premium *uint256.Int) *uint256.Int {
	credit := new(uint256.Int).Mul(premium, uint256.NewInt(b.terms.Numerator))
	return credit.Div(credit, uint256.NewInt(b.terms.Denominator))
}

func (b *Book) insert(p *Policy) {
	byPassenger, ok := b.policies[p.Flight]
	if !ok {
		byPassenger = make(map[ids.ShortID]*Policy)
		b.policies[p.Flight] = byPassenger
	}
	byPassenger[p.Passenger] = p
	b.count++
}
