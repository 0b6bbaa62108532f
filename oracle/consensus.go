// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package oracle turns independent oracle reports into one finalized flight
// status.
//
// Oracles register for a fee and receive a fixed set of indexes. A status
// request is opened at a random index; only oracles holding that index may
// answer. The first status reported by a quorum of distinct oracles
// finalizes the flight and credits its policies.
package oracle

import (
	"fmt"
	"time"

	"github.com/google/btree"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/insurance"
)

const treeDegree = 32

var (
	ErrWrongFee          = failure.New(failure.WrongFee, "registration fee does not match")
	ErrAlreadyRegistered = failure.New(failure.AlreadyRegistered, "oracle is already registered")
	ErrNotRegistered     = failure.New(failure.NotRegistered, "oracle is not registered")
	ErrIndexMismatch     = failure.New(failure.IndexMismatch, "index does not match oracle")
	ErrNoSuchRequest     = failure.New(failure.NoSuchRequest, "no request for key")
	ErrRequestClosed     = failure.New(failure.RequestClosed, "request is closed")
	ErrDuplicateResponse = failure.New(failure.DuplicateVote, "oracle already responded")
	ErrInvalidStatus     = failure.New(failure.InvalidStatus, "invalid status code")
	ErrUnknownFlight     = failure.New(failure.UnknownFlight, "flight is not registered")
	ErrFlightFinalized   = failure.New(failure.FlightFinalized, "flight status is already final")
)

// Flights validates and finalizes flight statuses.
type Flights interface {
	Get(ids.ID) (flight.Flight, bool)
	CheckFinalize(ids.ID, flight.Status) error
	Finalize(ids.ID, flight.Status, uint64) (bool, error)
}

// Settlement credits policies once a flight is final.
type Settlement interface {
	CreditForFinalizedStatus(ids.ID) ([]insurance.Payout, error)
}

type Config struct {
	Fee        uint256.Int
	IndexSpace int
	IndexCount int
	Quorum     int
	// TTL bounds how long a request stays open. Zero never expires.
	TTL                  time.Duration
	RejectUnknownFlights bool
}

// Consensus is not safe for concurrent use.
type Consensus struct {
	config     Config
	source     IndexSource
	flights    Flights
	settlement Settlement

	oracles  map[ids.ShortID]*Oracle
	requests map[ids.ID]*Request
	// open holds unresolved requests, including expired ones not yet pruned
	open *btree.BTreeG[*Request]
	// settled maps flights finalized without a registered record to the
	// request holding their status. Those requests are never pruned.
	settled map[ids.ID]ids.ID
	nonce   uint64
	seq   uint64

	dirtyOracles  set.Set[ids.ShortID]
	dirtyRequests set.Set[ids.ID]
	removed       set.Set[ids.ID]
	nonceDirty    bool
}

func New(config Config, source IndexSource, flights Flights, settlement Settlement) *Consensus {
	c := &Consensus{
		config:     config,
		source:     source,
		flights:    flights,
		settlement: settlement,
		oracles:    make(map[ids.ShortID]*Oracle),
		requests:   make(map[ids.ID]*Request),
		settled:    make(map[ids.ID]ids.ID),
		open:       btree.NewG(treeDegree, (*Request).less),
	}
	c.ClearChanges()
	return c
}

// Restore loads persisted oracles, requests and the index nonce into an
// empty Consensus.
func (c *Consensus) Restore(oracles []*Oracle, requests []*Request, nonce uint64) {
	for _, o := range oracles {
		oracle := *o
		oracle.Indexes = append([]uint8(nil), o.Indexes...)
		c.oracles[oracle.ID] = &oracle
	}
	for _, r := range requests {
		req := copyRequest(r)
		c.requests[req.Key] = &req
		if !req.Resolved {
			c.open.ReplaceOrInsert(&req)
		}
		if req.Resolved && req.Status.Terminal() {
			if _, ok := c.flights.Get(req.Flight); !ok {
				c.settled[req.Flight] = req.Key
			}
		}
		c.seq = max(c.seq, req.Seq)
	}
	c.nonce = nonce
}

func (c *Consensus) Nonce() uint64 {
	return c.nonce
}

// RegisterOracle assigns indexes to id. fee must equal the configured fee.
func (c *Consensus) RegisterOracle(id ids.ShortID, fee *uint256.Int, now time.Time) (Oracle, error) {
	if !fee.Eq(&c.config.Fee) {
		return Oracle{}, fmt.Errorf("%w: paid %s, fee is %s", ErrWrongFee, fee.Dec(), c.config.Fee.Dec())
	}
	if _, ok := c.oracles[id]; ok {
		return Oracle{}, fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}

	o := &Oracle{
		ID:           id,
		Indexes:      make([]uint8, c.config.IndexCount),
		RegisteredAt: now.UnixNano(),
	}
	for i := range o.Indexes {
		o.Indexes[i] = c.draw(id)
	}
	c.oracles[id] = o
	c.dirtyOracles.Add(id)
	return copyOracle(o), nil
}

// Indexes returns the indexes assigned to id.
func (c *Consensus) Indexes(id ids.ShortID) ([]uint8, error) {
	o, ok := c.oracles[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	return append([]uint8(nil), o.Indexes...), nil
}

func (c *Consensus) Oracle(id ids.ShortID) (Oracle, bool) {
	o, ok := c.oracles[id]
	if !ok {
		return Oracle{}, false
	}
	return copyOracle(o), true
}

func (c *Consensus) OracleCount() int {
	return len(c.oracles)
}

// RequestStatus opens a request for the flight at a freshly drawn index. If
// an open request already exists at that index it is returned and created is
// false.
func (c *Consensus) RequestStatus(
	requester ids.ShortID,
	airline ids.ShortID,
	code string,
	departure uint64,
	now time.Time,
) (req Request, created bool, err error) {
	flightKey := flight.KeyOf(airline, code, departure)
	f, ok := c.flights.Get(flightKey)
	switch {
	case !ok && c.config.RejectUnknownFlights:
		return Request{}, false, fmt.Errorf("%w: %s at %d", ErrUnknownFlight, code, departure)
	case ok && f.Status != flight.Unknown:
		return Request{}, false, fmt.Errorf("%w: %s is %s", ErrFlightFinalized, code, f.Status)
	}
	if settledBy, ok := c.settled[flightKey]; ok {
		return Request{}, false, fmt.Errorf("%w: %s is %s", ErrFlightFinalized, code, c.requests[settledBy].Status)
	}

	index := c.source.Index(requester, c.nonce, c.config.IndexSpace)
	key := RequestKey(index, flightKey)
	if existing, ok := c.requests[key]; ok {
		switch existing.State(now, c.config.TTL) {
		case Open:
			return copyRequest(existing), false, nil
		case Expired:
			// reopened below
			c.open.Delete(existing)
		default:
			return Request{}, false, fmt.Errorf("%w: %s", ErrRequestClosed, key)
		}
	}

	c.nonce++
	c.nonceDirty = true
	c.seq++
	r := &Request{
		Key:       key,
		Index:     index,
		Flight:    flightKey,
		Airline:   airline,
		Code:      code,
		Departure: departure,
		Requester: requester,
		OpenedAt:  now.UnixNano(),
		Seq:       c.seq,
	}
	c.requests[key] = r
	c.open.ReplaceOrInsert(r)
	c.dirtyRequests.Add(key)
	c.removed.Remove(key)
	return copyRequest(r), true, nil
}

// Submit records oracle's report of status for the request at index. The
// first status reported by a quorum finalizes the flight, closes every other
// request for it and credits its policies.
func (c *Consensus) Submit(
	oracle ids.ShortID,
	index uint8,
	airline ids.ShortID,
	code string,
	departure uint64,
	status flight.Status,
	now time.Time,
) (Outcome, error) {
	o, ok := c.oracles[oracle]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s is not registered", ErrIndexMismatch, oracle)
	}
	if !o.HasIndex(index) {
		return Outcome{}, fmt.Errorf("%w: %d not in %v", ErrIndexMismatch, index, o.Indexes)
	}

	flightKey := flight.KeyOf(airline, code, departure)
	key := RequestKey(index, flightKey)
	r, ok := c.requests[key]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s at index %d", ErrNoSuchRequest, code, index)
	}
	if state := r.State(now, c.config.TTL); state != Open {
		return Outcome{}, fmt.Errorf("%w: %s", ErrRequestClosed, state)
	}
	if !status.Terminal() {
		return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}
	if r.Responded(oracle) {
		return Outcome{}, fmt.Errorf("%w: %s", ErrDuplicateResponse, oracle)
	}

	count := r.Count(status) + 1
	finalize := count >= c.config.Quorum
	if finalize {
		if err := c.flights.CheckFinalize(flightKey, status); err != nil {
			return Outcome{}, err
		}
	}

	r.Responses = append(r.Responses, Response{Oracle: oracle, Status: status})
	c.dirtyRequests.Add(key)
	outcome := Outcome{Count: count}
	if !finalize {
		outcome.Request = copyRequest(r)
		return outcome, nil
	}

	r.Resolved = true
	r.Status = status
	c.open.Delete(r)
	outcome.Finalized = true
	outcome.Closed = c.closeFlight(flightKey)
	outcome.Request = copyRequest(r)

	updated, err := c.flights.Finalize(flightKey, status, uint64(now.Unix()))
	if err != nil {
		return outcome, err
	}
	if !updated {
		c.settled[flightKey] = key
	}
	payouts, err := c.settlement.CreditForFinalizedStatus(flightKey)
	outcome.Payouts = payouts
	return outcome, err
}

// Request returns the request at key.
func (c *Consensus) Request(key ids.ID) (Request, bool) {
	r, ok := c.requests[key]
	if !ok {
		return Request{}, false
	}
	return copyRequest(r), true
}

// State returns the state of the request at key.
func (c *Consensus) State(key ids.ID, now time.Time) (RequestState, bool) {
	r, ok := c.requests[key]
	if !ok {
		return Open, false
	}
	return r.State(now, c.config.TTL), true
}

// ListOpen returns the open requests in the order they were opened.
func (c *Consensus) ListOpen(now time.Time) []Request {
	requests := make([]Request, 0, c.open.Len())
	c.open.Ascend(func(r *Request) bool {
		if r.State(now, c.config.TTL) == Open {
			requests = append(requests, copyRequest(r))
		}
		return true
	})
	return requests
}

// OpenCount returns the number of unresolved requests, including expired
// requests that have not been pruned.
func (c *Consensus) OpenCount() int {
	return c.open.Len()
}

// Prune drops finalized, closed and expired requests. It returns the number
// of requests removed. A request that is the only record of an unregistered
// flight's status is kept.
func (c *Consensus) Prune(now time.Time) int {
	pruned := 0
	for key, r := range c.requests {
		if r.State(now, c.config.TTL) == Open || c.settled[r.Flight] == key {
			continue
		}
		if !r.Resolved {
			c.open.Delete(r)
		}
		delete(c.requests, key)
		c.dirtyRequests.Remove(key)
		c.removed.Add(key)
		pruned++
	}
	return pruned
}

// Changes returns what was modified since ClearChanges.
func (c *Consensus) Changes() (oracles []Oracle, requests []Request, removed []ids.ID, nonceChanged bool) {
	for id := range c.dirtyOracles {
		oracles = append(oracles, copyOracle(c.oracles[id]))
	}
	for key := range c.dirtyRequests {
		requests = append(requests, copyRequest(c.requests[key]))
	}
	for key := range c.removed {
		removed = append(removed, key)
	}
	return oracles, requests, removed, c.nonceDirty
}

func (c *Consensus) Dirty() bool {
	return c.nonceDirty ||
		c.dirtyOracles.Len() > 0 ||
		c.dirtyRequests.Len() > 0 ||
		c.removed.Len() > 0
}

func (c *Consensus) ClearChanges() {
	c.dirtyOracles = set.NewSet[ids.ShortID](0)
	c.dirtyRequests = set.NewSet[ids.ID](0)
	c.removed = set.NewSet[ids.ID](0)
	c.nonceDirty = false
}

// closeFlight resolves every other open request for flightKey.
func (c *Consensus) closeFlight(flightKey ids.ID) []ids.ID {
	var closing []*Request
	c.open.Ascend(func(r *Request) bool {
		if r.Flight == flightKey {
			closing = append(closing, r)
		}
		return true
	})

	closed := make([]ids.ID, 0, len(closing))
	for _, r := range closing {
		c.open.Delete(r)
		r.Resolved = true
		c.dirtyRequests.Add(r.Key)
		closed = append(closed, r.Key)
	}
	return closed
}

func (c *Consensus) draw(account ids.ShortID) uint8 {
	index := c.source.Index(account, c.nonce, c.config.IndexSpace)
	c.nonce++
	c.nonceDirty = true
	return index
}

func copyOracle(o *Oracle) Oracle {
	c := *o
	c.Indexes = append([]uint8(nil), o.Indexes...)
	return c
}
