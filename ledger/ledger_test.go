// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/utils/units"
)

func TestFund(t *testing.T) {
	require := require.New(t)

	l := New()
	airline := ids.GenerateTestShortID()

	_, err := l.Fund(airline, new(uint256.Int))
	require.ErrorIs(err, ErrInvalidAmount)
	require.Equal(failure.InvalidAmount, failure.KindOf(err))
	require.False(l.Dirty())

	total, err := l.Fund(airline, units.Ethers(4))
	require.NoError(err)
	require.Equal(units.Ethers(4), total)

	total, err = l.Fund(airline, units.Ethers(6))
	require.NoError(err)
	require.Equal(units.Ethers(10), total)
	require.Equal(units.Ethers(10), l.Funds(airline))
	require.Equal(units.Ethers(10), l.Reserve())
	require.True(l.Balance(airline).IsZero())
}

func TestFundOverflowLeavesStateUnchanged(t *testing.T) {
	require := require.New(t)

	l := New()
	airline := ids.GenerateTestShortID()
	maxAmount := new(uint256.Int).SetAllOne()

	_, err := l.Fund(airline, maxAmount)
	require.NoError(err)
	l.ClearChanges()

	_, err = l.Fund(airline, uint256.NewInt(1))
	require.ErrorIs(err, ErrOverflow)
	require.Equal(maxAmount, l.Funds(airline))
	require.False(l.Dirty())

	_, err = l.Fund(ids.GenerateTestShortID(), uint256.NewInt(1))
	require.ErrorIs(err, ErrOverflow)
	require.False(l.Dirty())
}

func TestWithdraw(t *testing.T) {
	require := require.New(t)

	l := New()
	passenger := ids.GenerateTestShortID()

	_, err := l.Withdraw(passenger)
	require.ErrorIs(err, ErrInsufficientBalance)

	require.NoError(l.Escrow(units.Ethers(5)))
	require.NoError(l.CreditWithdrawable(passenger, uint256.NewInt(3*units.Ether/2)))
	require.Equal(uint256.NewInt(3*units.Ether/2), l.Balance(passenger))

	paid, err := l.Withdraw(passenger)
	require.NoError(err)
	require.Equal(uint256.NewInt(3*units.Ether/2), paid)
	require.True(l.Balance(passenger).IsZero())
	require.Equal(uint256.NewInt(7*units.Ether/2), l.Reserve())

	acct, ok := l.Account(passenger)
	require.True(ok)
	require.Equal(uint256.NewInt(3*units.Ether/2), &acct.Withdrawn)

	// nothing left to pay out
	_, err = l.Withdraw(passenger)
	require.ErrorIs(err, ErrInsufficientBalance)
	require.Equal(uint256.NewInt(7*units.Ether/2), l.Reserve())
}

func TestWithdrawExceedsReserve(t *testing.T) {
	require := require.New(t)

	l := New()
	passenger := ids.GenerateTestShortID()
	require.NoError(l.CreditWithdrawable(passenger, units.Ethers(1)))
	l.ClearChanges()

	_, err := l.Withdraw(passenger)
	require.ErrorIs(err, ErrInsufficientBalance)
	require.Equal(units.Ethers(1), l.Balance(passenger))
	require.False(l.Dirty())
}

func TestCreditZeroIsNoop(t *testing.T) {
	require := require.New(t)

	l := New()
	passenger := ids.GenerateTestShortID()
	require.NoError(l.CreditWithdrawable(passenger, new(uint256.Int)))
	require.False(l.Dirty())

	_, ok := l.Account(passenger)
	require.False(ok)
}

func TestChangesAndRestore(t *testing.T) {
	require := require.New(t)

	l := New()
	a, b := ids.GenerateTestShortID(), ids.GenerateTestShortID()
	_, err := l.Fund(a, units.Ethers(10))
	require.NoError(err)
	require.NoError(l.Escrow(units.Ethers(1)))
	require.NoError(l.CreditWithdrawable(b, units.Ethers(1)))

	changed, reserveChanged := l.Changes()
	require.Len(changed, 2)
	require.True(reserveChanged)

	l.ClearChanges()
	changed, reserveChanged = l.Changes()
	require.Empty(changed)
	require.False(reserveChanged)

	accounts := []*Account{}
	for _, id := range []ids.ShortID{a, b} {
		acct, ok := l.Account(id)
		require.True(ok)
		accounts = append(accounts, &acct)
	}
	restored := Restore(accounts, l.Reserve())
	require.Equal(units.Ethers(10), restored.Funds(a))
	require.Equal(units.Ethers(1), restored.Balance(b))
	require.Equal(units.Ethers(11), restored.Reserve())
	require.False(restored.Dirty())
}
