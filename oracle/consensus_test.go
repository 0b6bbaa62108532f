// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/insurance"
	"github.com/luxfi/surety/ledger"
	"github.com/luxfi/surety/utils/units"
)

var testNow = time.Unix(1_700_000_000, 0)

type fundedAirlines map[ids.ShortID]bool

func (f fundedAirlines) IsFunded(id ids.ShortID) bool {
	return f[id]
}

// scripted returns indexes by nonce, repeating the script.
func scripted(indexes ...uint8) IndexSource {
	return IndexFunc(func(_ ids.ShortID, nonce uint64, _ int) uint8 {
		return indexes[nonce%uint64(len(indexes))]
	})
}

type testEnv struct {
	consensus *Consensus
	flights   *flight.Registry
	book      *insurance.Book
	ledger    *ledger.Ledger
	airline   ids.ShortID
	flight    flight.Flight
}

func testConfig() Config {
	return Config{
		Fee:                  *units.Ethers(1),
		IndexSpace:           10,
		IndexCount:           3,
		Quorum:               3,
		RejectUnknownFlights: true,
	}
}

func newTestEnv(t *testing.T, config Config, source IndexSource) *testEnv {
	t.Helper()

	airline := ids.GenerateTestShortID()
	flights := flight.NewRegistry(fundedAirlines{airline: true})
	f, err := flights.Register(airline, "ND1309", 1_600_000_000)
	require.NoError(t, err)

	l := ledger.New()
	book := insurance.NewBook(insurance.Terms{
		Cap:         *units.Ethers(1),
		Numerator:   3,
		Denominator: 2,
		Covered: func(s flight.Status) bool {
			return s == flight.LateAirline
		},
	}, flights, l)

	return &testEnv{
		consensus: New(config, source, flights, book),
		flights:   flights,
		book:      book,
		ledger:    l,
		airline:   airline,
		flight:    f,
	}
}

// registerOracles registers n oracles, all of which receive the same
// indexes under a constant source.
func (e *testEnv) registerOracles(t *testing.T, n int) []ids.ShortID {
	oracles := make([]ids.ShortID, n)
	for i := range oracles {
		oracles[i] = ids.GenerateTestShortID()
		_, err := e.consensus.RegisterOracle(oracles[i], units.Ethers(1), testNow)
		require.NoError(t, err)
	}
	return oracles
}

func (e *testEnv) submit(oracle ids.ShortID, index uint8, status flight.Status, now time.Time) (Outcome, error) {
	return e.consensus.Submit(oracle, index, e.airline, e.flight.Code, e.flight.Departure, status, now)
}

func TestRegisterOracle(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, testConfig(), scripted(4, 7, 4))
	c := env.consensus
	oracle := ids.GenerateTestShortID()

	_, err := c.RegisterOracle(oracle, uint256.NewInt(units.Ether/2), testNow)
	require.ErrorIs(err, ErrWrongFee)
	_, err = c.RegisterOracle(oracle, units.Ethers(2), testNow)
	require.ErrorIs(err, ErrWrongFee)
	require.False(c.Dirty())

	_, err = c.Indexes(oracle)
	require.ErrorIs(err, ErrNotRegistered)
	require.Equal(failure.NotRegistered, failure.KindOf(err))

	o, err := c.RegisterOracle(oracle, units.Ethers(1), testNow)
	require.NoError(err)
	require.Equal([]uint8{4, 7, 4}, o.Indexes)
	require.Equal(uint64(3), c.Nonce())

	_, err = c.RegisterOracle(oracle, units.Ethers(1), testNow)
	require.ErrorIs(err, ErrAlreadyRegistered)

	for i := 0; i < 3; i++ {
		indexes, err := c.Indexes(oracle)
		require.NoError(err)
		require.Equal([]uint8{4, 7, 4}, indexes)
	}
	require.Equal(1, c.OracleCount())
}

func TestKeccakSourceWithinSpace(t *testing.T) {
	require := require.New(t)

	src := NewKeccakSource([]byte("seed"))
	account := ids.GenerateTestShortID()
	seen := map[uint8]bool{}
	for nonce := uint64(0); nonce < 200; nonce++ {
		index := src.Index(account, nonce, 10)
		require.Less(index, uint8(10))
		seen[index] = true
	}
	require.Greater(len(seen), 5)
	require.Equal(src.Index(account, 7, 10), NewKeccakSource([]byte("seed")).Index(account, 7, 10))
}

func TestSubmitIndexMismatch(t *testing.T) {
	require := require.New(t)

	// oracle gets [4 7 4], the request is opened at 4
	env := newTestEnv(t, testConfig(), scripted(4, 7, 4, 4))
	oracles := env.registerOracles(t, 1)

	req, created, err := env.consensus.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND1309", env.flight.Departure, testNow)
	require.NoError(err)
	require.True(created)
	require.Equal(uint8(4), req.Index)

	outcome, err := env.submit(oracles[0], 4, flight.OnTime, testNow)
	require.NoError(err)
	require.Equal(1, outcome.Count)
	require.False(outcome.Finalized)

	_, err = env.submit(oracles[0], 9, flight.OnTime, testNow)
	require.ErrorIs(err, ErrIndexMismatch)

	// assigned index without an open request
	_, err = env.submit(oracles[0], 7, flight.OnTime, testNow)
	require.ErrorIs(err, ErrNoSuchRequest)

	_, err = env.submit(ids.GenerateTestShortID(), 4, flight.OnTime, testNow)
	require.ErrorIs(err, ErrIndexMismatch)

	_, err = env.submit(oracles[0], 4, flight.OnTime, testNow)
	require.ErrorIs(err, ErrDuplicateResponse)
	require.Equal(failure.DuplicateVote, failure.KindOf(err))
}

func TestQuorumFinalizesAndCredits(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, testConfig(), scripted(2))
	oracles := env.registerOracles(t, 6)
	passenger := ids.GenerateTestShortID()
	_, err := env.book.Buy(passenger, env.flight.Key, units.Ethers(2))
	require.NoError(err)
	require.NoError(env.ledger.Escrow(units.Ethers(1)))

	req, _, err := env.consensus.RequestStatus(passenger, env.airline, "ND1309", env.flight.Departure, testNow)
	require.NoError(err)
	require.Len(env.consensus.ListOpen(testNow), 1)

	// split reports: the first status to reach three wins
	steps := []struct {
		status    flight.Status
		count     int
		finalized bool
	}{
		{flight.OnTime, 1, false},
		{flight.LateAirline, 1, false},
		{flight.OnTime, 2, false},
		{flight.LateAirline, 2, false},
		{flight.LateAirline, 3, true},
	}
	var outcome Outcome
	for i, step := range steps {
		outcome, err = env.submit(oracles[i], req.Index, step.status, testNow)
		require.NoError(err)
		require.Equal(step.count, outcome.Count)
		require.Equal(step.finalized, outcome.Finalized)
	}

	require.Equal(flight.LateAirline, outcome.Request.Status)
	require.Len(outcome.Payouts, 1)
	require.Equal(uint256.NewInt(3*units.Ether/2), outcome.Payouts[0].Amount)
	require.Equal(uint256.NewInt(3*units.Ether/2), env.ledger.Balance(passenger))

	status, err := env.flights.Status(env.flight.Key)
	require.NoError(err)
	require.Equal(flight.LateAirline, status)

	state, ok := env.consensus.State(req.Key, testNow)
	require.True(ok)
	require.Equal(Finalized, state)
	require.Empty(env.consensus.ListOpen(testNow))

	_, err = env.submit(oracles[5], req.Index, flight.OnTime, testNow)
	require.ErrorIs(err, ErrRequestClosed)
	_, err = env.submit(oracles[5], req.Index, flight.LateAirline, testNow)
	require.ErrorIs(err, ErrRequestClosed)

	_, _, err = env.consensus.RequestStatus(passenger, env.airline, "ND1309", env.flight.Departure, testNow)
	require.ErrorIs(err, ErrFlightFinalized)
}

func TestFinalizationClosesOtherRequests(t *testing.T) {
	require := require.New(t)

	// every oracle holds [1 2 1]; requests open at 1 and 2
	env := newTestEnv(t, testConfig(), IndexFunc(func(_ ids.ShortID, nonce uint64, _ int) uint8 {
		if nonce >= 9 {
			return uint8(nonce - 8)
		}
		return []uint8{1, 2, 1}[nonce%3]
	}))
	oracles := env.registerOracles(t, 3)

	first, _, err := env.consensus.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND1309", env.flight.Departure, testNow)
	require.NoError(err)
	second, _, err := env.consensus.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND1309", env.flight.Departure, testNow)
	require.NoError(err)
	require.Equal(uint8(1), first.Index)
	require.Equal(uint8(2), second.Index)

	open := env.consensus.ListOpen(testNow)
	require.Len(open, 2)
	require.Equal(first.Key, open[0].Key)

	var outcome Outcome
	for _, o := range oracles {
		outcome, err = env.submit(o, second.Index, flight.OnTime, testNow)
		require.NoError(err)
	}
	require.True(outcome.Finalized)
	require.Equal([]ids.ID{first.Key}, outcome.Closed)
	require.Empty(outcome.Payouts)

	state, _ := env.consensus.State(first.Key, testNow)
	require.Equal(Closed, state)
	_, err = env.submit(oracles[0], first.Index, flight.OnTime, testNow)
	require.ErrorIs(err, ErrRequestClosed)
}

func TestRequestStatus(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, testConfig(), scripted(3))
	c := env.consensus

	_, _, err := c.RequestStatus(ids.GenerateTestShortID(), env.airline, "XX1", 5, testNow)
	require.ErrorIs(err, ErrUnknownFlight)
	require.False(c.Dirty())

	first, created, err := c.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND1309", env.flight.Departure, testNow)
	require.NoError(err)
	require.True(created)
	require.Equal(RequestKey(3, env.flight.Key), first.Key)

	again, created, err := c.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND1309", env.flight.Departure, testNow)
	require.NoError(err)
	require.False(created)
	require.Equal(first, again)
	require.Equal(uint64(1), c.Nonce())
}

func TestRequestStatusUnknownFlightAllowed(t *testing.T) {
	require := require.New(t)

	config := testConfig()
	config.RejectUnknownFlights = false
	env := newTestEnv(t, config, scripted(3))
	oracles := env.registerOracles(t, 3)

	req, created, err := env.consensus.RequestStatus(ids.GenerateTestShortID(), env.airline, "XX1", 5, testNow)
	require.NoError(err)
	require.True(created)

	var outcome Outcome
	for _, o := range oracles {
		outcome, err = env.consensus.Submit(o, req.Index, env.airline, "XX1", 5, flight.LateAirline, testNow)
		require.NoError(err)
	}
	require.True(outcome.Finalized)
	require.Empty(outcome.Payouts)
	require.False(env.flights.IsRegistered(flight.KeyOf(env.airline, "XX1", 5)))

	// The request is the only record of the status, so it survives pruning
	// and the flight cannot be settled again.
	require.Zero(env.consensus.Prune(testNow))
	_, ok := env.consensus.Request(req.Key)
	require.True(ok)
	_, _, err = env.consensus.RequestStatus(ids.GenerateTestShortID(), env.airline, "XX1", 5, testNow)
	require.ErrorIs(err, ErrFlightFinalized)

	stored, ok := env.consensus.Request(req.Key)
	require.True(ok)
	restored := New(config, scripted(3), env.flights, env.book)
	restored.Restore(nil, []*Request{&stored}, env.consensus.Nonce())
	require.Zero(restored.Prune(testNow))
	_, _, err = restored.RequestStatus(ids.GenerateTestShortID(), env.airline, "XX1", 5, testNow)
	require.ErrorIs(err, ErrFlightFinalized)
}

func TestRequestExpiry(t *testing.T) {
	require := require.New(t)

	config := testConfig()
	config.TTL = time.Minute
	env := newTestEnv(t, config, scripted(5))
	oracles := env.registerOracles(t, 1)
	c := env.consensus

	req, _, err := c.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND1309", env.flight.Departure, testNow)
	require.NoError(err)

	later := testNow.Add(time.Minute)
	state, _ := c.State(req.Key, later)
	require.Equal(Expired, state)
	require.Empty(c.ListOpen(later))
	require.Len(c.ListOpen(testNow), 1)

	_, err = env.submit(oracles[0], 5, flight.OnTime, later)
	require.ErrorIs(err, ErrRequestClosed)

	// an expired request is reopened by a new request at its index
	reopened, created, err := c.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND1309", env.flight.Departure, later)
	require.NoError(err)
	require.True(created)
	require.Equal(req.Key, reopened.Key)
	require.Greater(reopened.Seq, req.Seq)
	require.Equal(1, c.OpenCount())

	_, err = env.submit(oracles[0], 5, flight.OnTime, later)
	require.NoError(err)
}

func TestPrune(t *testing.T) {
	require := require.New(t)

	config := testConfig()
	config.TTL = time.Hour
	env := newTestEnv(t, config, scripted(1))
	oracles := env.registerOracles(t, 3)
	c := env.consensus

	other, err := env.flights.Register(env.airline, "ND2000", 1_600_000_000)
	require.NoError(err)

	// expires
	stale, _, err := c.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND1309", env.flight.Departure, testNow.Add(-2*time.Hour))
	require.NoError(err)
	// finalizes
	done, _, err := c.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND2000", other.Departure, testNow)
	require.NoError(err)
	for _, o := range oracles {
		_, err := c.Submit(o, done.Index, env.airline, "ND2000", other.Departure, flight.OnTime, testNow)
		require.NoError(err)
	}
	c.ClearChanges()

	require.Equal(2, c.Prune(testNow))
	_, ok := c.Request(stale.Key)
	require.False(ok)
	_, ok = c.Request(done.Key)
	require.False(ok)
	require.Zero(c.OpenCount())

	_, _, removed, _ := c.Changes()
	require.ElementsMatch([]ids.ID{stale.Key, done.Key}, removed)
	require.Zero(c.Prune(testNow))
}

func TestChangesAndRestore(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, testConfig(), scripted(6))
	oracles := env.registerOracles(t, 3)
	req, _, err := env.consensus.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND1309", env.flight.Departure, testNow)
	require.NoError(err)
	_, err = env.submit(oracles[0], 6, flight.LateOther, testNow)
	require.NoError(err)

	changedOracles, changedRequests, removed, nonceChanged := env.consensus.Changes()
	require.Len(changedOracles, 3)
	require.Len(changedRequests, 1)
	require.Empty(removed)
	require.True(nonceChanged)

	oracleRecords := make([]*Oracle, 0, len(changedOracles))
	for i := range changedOracles {
		oracleRecords = append(oracleRecords, &changedOracles[i])
	}
	restored := New(testConfig(), scripted(6), env.flights, env.book)
	restored.Restore(oracleRecords, []*Request{&changedRequests[0]}, env.consensus.Nonce())
	require.False(restored.Dirty())
	require.Equal(uint64(10), restored.Nonce())

	open := restored.ListOpen(testNow)
	require.Len(open, 1)
	require.Equal(req.Key, open[0].Key)
	require.Equal(1, open[0].Count(flight.LateOther))

	_, err = restored.Submit(oracles[0], 6, env.airline, "ND1309", env.flight.Departure, flight.LateOther, testNow)
	require.ErrorIs(err, ErrDuplicateResponse)
	for _, o := range oracles[1:] {
		_, err = restored.Submit(o, 6, env.airline, "ND1309", env.flight.Departure, flight.LateOther, testNow)
		require.NoError(err)
	}
	status, err := env.flights.Status(env.flight.Key)
	require.NoError(err)
	require.Equal(flight.LateOther, status)
}

func TestInvalidStatus(t *testing.T) {
	require := require.New(t)

	env := newTestEnv(t, testConfig(), scripted(0))
	oracles := env.registerOracles(t, 1)
	_, _, err := env.consensus.RequestStatus(ids.GenerateTestShortID(), env.airline, "ND1309", env.flight.Departure, testNow)
	require.NoError(err)

	for _, status := range []flight.Status{flight.Unknown, 15, 60} {
		_, err = env.submit(oracles[0], 0, status, testNow)
		require.ErrorIs(err, ErrInvalidStatus)
	}
}
