// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package airline

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/utils/units"
)

type testFunds map[ids.ShortID]*uint256.Int

func (f testFunds) Funds(id ids.ShortID) *uint256.Int {
	if v, ok := f[id]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}

// newTestRegistry seeds a registry with a funded first airline.
func newTestRegistry(t *testing.T) (*Registry, testFunds, ids.ShortID) {
	funds := testFunds{}
	r := NewRegistry(5, units.Ethers(10), funds)
	first := ids.GenerateTestShortID()
	funds[first] = units.Ethers(10)
	require.NoError(t, r.Seed(first, "First Air"))
	return r, funds, first
}

// fund records funding for id and promotes it.
func fund(t *testing.T, r *Registry, funds testFunds, id ids.ShortID) {
	funds[id] = units.Ethers(10)
	require.True(t, r.Promote(id))
}

func TestSeed(t *testing.T) {
	require := require.New(t)

	funds := testFunds{}
	r := NewRegistry(5, units.Ethers(10), funds)
	first := ids.GenerateTestShortID()

	require.ErrorIs(r.Seed(first, ""), ErrUnderfunded)

	funds[first] = units.Ethers(10)
	require.NoError(r.Seed(first, "First Air"))
	require.True(r.IsFunded(first))
	require.ErrorIs(r.Seed(first, ""), ErrAlreadyRegistered)

	admitted, funded := r.Counts()
	require.Equal(1, admitted)
	require.Equal(1, funded)
}

func TestRegisterUnconditionalBelowThreshold(t *testing.T) {
	require := require.New(t)

	r, _, first := newTestRegistry(t)
	for i := 0; i < 4; i++ {
		candidate := ids.GenerateTestShortID()
		adm, err := r.Register(candidate, first, "")
		require.NoError(err)
		require.True(adm.Admitted)
		require.Zero(adm.Required)
		require.True(r.IsRegistered(candidate))
		require.False(r.IsFunded(candidate))
	}

	admitted, funded := r.Counts()
	require.Equal(5, admitted)
	require.Equal(1, funded)

	// the sixth needs votes from half of the single funded airline
	sixth := ids.GenerateTestShortID()
	adm, err := r.Register(sixth, first, "Sixth")
	require.NoError(err)
	require.True(adm.Admitted)
	require.Equal(1, adm.Votes)
	require.Equal(1, adm.Required)
}

func TestRegisterRequiresFundedRequester(t *testing.T) {
	require := require.New(t)

	r, _, first := newTestRegistry(t)
	second := ids.GenerateTestShortID()
	_, err := r.Register(second, first, "")
	require.NoError(err)

	_, err = r.Register(ids.GenerateTestShortID(), second, "")
	require.ErrorIs(err, ErrNotFunded)
	require.Equal(failure.NotFunded, failure.KindOf(err))

	_, err = r.Register(ids.GenerateTestShortID(), ids.GenerateTestShortID(), "")
	require.ErrorIs(err, ErrNotFunded)

	_, err = r.Register(second, first, "")
	require.ErrorIs(err, ErrAlreadyRegistered)
	_, err = r.Register(first, first, "")
	require.ErrorIs(err, ErrAlreadyRegistered)
}

func TestRegisterByVote(t *testing.T) {
	require := require.New(t)

	r, funds, first := newTestRegistry(t)
	airlines := []ids.ShortID{first}
	for i := 0; i < 4; i++ {
		id := ids.GenerateTestShortID()
		_, err := r.Register(id, first, "")
		require.NoError(err)
		fund(t, r, funds, id)
		airlines = append(airlines, id)
	}
	admitted, funded := r.Counts()
	require.Equal(5, admitted)
	require.Equal(5, funded)

	sixth := ids.GenerateTestShortID()
	adm, err := r.Register(sixth, airlines[0], "Sixth")
	require.NoError(err)
	require.False(adm.Admitted)
	require.Equal(1, adm.Votes)
	require.Equal(3, adm.Required)
	require.False(r.IsRegistered(sixth))

	// repeat votes never raise the tally
	_, err = r.Register(sixth, airlines[0], "Sixth")
	require.ErrorIs(err, ErrDuplicateVote)
	require.Equal(1, r.Votes(sixth))

	adm, err = r.Register(sixth, airlines[1], "")
	require.NoError(err)
	require.False(adm.Admitted)
	require.Equal(2, adm.Votes)

	adm, err = r.Register(sixth, airlines[2], "")
	require.NoError(err)
	require.True(adm.Admitted)
	require.Equal(3, adm.Votes)
	require.True(r.IsRegistered(sixth))

	a, ok := r.Get(sixth)
	require.True(ok)
	require.Equal("Sixth", a.Name)
	require.Equal(Registered, a.Status)
	require.Equal(airlines[:3], a.Voters)

	_, err = r.Register(sixth, airlines[3], "")
	require.ErrorIs(err, ErrAlreadyRegistered)
}

func TestThresholdTracksFundedCountAtVoteTime(t *testing.T) {
	require := require.New(t)

	r, funds, first := newTestRegistry(t)
	var unfunded []ids.ShortID
	for i := 0; i < 4; i++ {
		id := ids.GenerateTestShortID()
		_, err := r.Register(id, first, "")
		require.NoError(err)
		unfunded = append(unfunded, id)
	}

	candidate := ids.GenerateTestShortID()
	fund(t, r, funds, unfunded[0])
	fund(t, r, funds, unfunded[1])

	// three funded: ceil(3/2) = 2
	adm, err := r.Register(candidate, first, "")
	require.NoError(err)
	require.Equal(2, adm.Required)
	require.False(adm.Admitted)

	// two more fund before the next vote: ceil(5/2) = 3
	fund(t, r, funds, unfunded[2])
	fund(t, r, funds, unfunded[3])
	adm, err = r.Register(candidate, unfunded[0], "")
	require.NoError(err)
	require.Equal(3, adm.Required)
	require.False(adm.Admitted)

	adm, err = r.Register(candidate, unfunded[1], "")
	require.NoError(err)
	require.True(adm.Admitted)
}

func TestPromote(t *testing.T) {
	require := require.New(t)

	r, funds, first := newTestRegistry(t)
	second := ids.GenerateTestShortID()

	require.ErrorIs(r.CheckFundable(second), ErrNotRegistered)
	require.False(r.Promote(second))

	_, err := r.Register(second, first, "")
	require.NoError(err)
	require.NoError(r.CheckFundable(second))

	funds[second] = units.Ethers(9)
	require.False(r.Promote(second))
	require.False(r.IsFunded(second))

	funds[second] = units.Ethers(10)
	require.True(r.Promote(second))
	require.True(r.IsFunded(second))

	// funded is terminal
	require.False(r.Promote(second))
	_, funded := r.Counts()
	require.Equal(2, funded)
}

func TestChangesAndRestore(t *testing.T) {
	require := require.New(t)

	r, funds, first := newTestRegistry(t)
	var admitted []ids.ShortID
	for i := 0; i < 4; i++ {
		id := ids.GenerateTestShortID()
		_, err := r.Register(id, first, "")
		require.NoError(err)
		admitted = append(admitted, id)
	}
	for _, id := range admitted[:3] {
		fund(t, r, funds, id)
	}
	pending := ids.GenerateTestShortID()
	adm, err := r.Register(pending, first, "Pending")
	require.NoError(err)
	require.False(adm.Admitted)

	require.Len(r.Changes(), 6)
	r.ClearChanges()
	require.False(r.Dirty())

	var records []*Airline
	for _, a := range r.List() {
		a := a
		records = append(records, &a)
	}
	require.Equal(first, records[0].ID)
	require.Equal(pending, records[5].ID)

	restored := NewRegistry(5, units.Ethers(10), funds)
	restored.Restore(records)
	admittedCount, fundedCount := restored.Counts()
	require.Equal(5, admittedCount)
	require.Equal(4, fundedCount)
	require.Equal(1, restored.Votes(pending))

	_, err = restored.Register(pending, first, "")
	require.ErrorIs(err, ErrDuplicateVote)
	adm, err = restored.Register(pending, admitted[0], "")
	require.NoError(err)
	require.True(adm.Admitted)
}
