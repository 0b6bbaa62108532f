// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger tracks what each participant has paid into the engine and
// what the engine owes back to them.
package ledger

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/surety/failure"
)

var (
	ErrInvalidAmount       = failure.New(failure.InvalidAmount, "amount must be positive")
	ErrOverflow            = failure.New(failure.InvalidAmount, "amount overflows balance")
	ErrInsufficientBalance = failure.New(failure.InsufficientBalance, "insufficient balance")
)

// Account holds the balances of one participant.
type Account struct {
	ID ids.ShortID `serialize:"true"`
	// Funded is the cumulative amount contributed through Fund.
	Funded uint256.Int `serialize:"true"`
	// Withdrawable is owed to the participant and paid out by Withdraw.
	Withdrawable uint256.Int `serialize:"true"`
	// Withdrawn is the cumulative amount paid out.
	Withdrawn uint256.Int `serialize:"true"`
}

// Ledger is not safe for concurrent use.
type Ledger struct {
	accounts map[ids.ShortID]*Account
	// reserve is everything paid in minus everything paid out
	reserve uint256.Int

	dirty        set.Set[ids.ShortID]
	reserveDirty bool
}

func New() *Ledger {
	return &Ledger{
		accounts: make(map[ids.ShortID]*Account),
		dirty:    set.NewSet[ids.ShortID](0),
	}
}

// Restore rebuilds a ledger from persisted accounts and reserve.
func Restore(accounts []*Account, reserve *uint256.Int) *Ledger {
	l := New()
	for _, acct := range accounts {
		a := *acct
		l.accounts[a.ID] = &a
	}
	l.reserve = *reserve
	return l
}

// Fund adds amount to participant's funded balance and to the reserve. It
// returns the participant's new cumulative funded amount.
func (l *Ledger) Fund(participant ids.ShortID, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	acct := l.account(participant)
	funded, overflow := new(uint256.Int).AddOverflow(&acct.Funded, amount)
	if overflow {
		return nil, fmt.Errorf("%w: funding %s", ErrOverflow, participant)
	}
	reserve, overflow := new(uint256.Int).AddOverflow(&l.reserve, amount)
	if overflow {
		return nil, fmt.Errorf("%w: reserve", ErrOverflow)
	}

	acct.Funded = *funded
	l.reserve = *reserve
	l.touch(acct)
	return funded.Clone(), nil
}

// Escrow adds amount to the reserve without attributing it to a participant's
// funded balance. Premiums and registration fees are escrowed.
func (l *Ledger) Escrow(amount *uint256.Int) error {
	reserve, overflow := new(uint256.Int).AddOverflow(&l.reserve, amount)
	if overflow {
		return fmt.Errorf("%w: reserve", ErrOverflow)
	}
	l.reserve = *reserve
	l.reserveDirty = true
	return nil
}

// CreditWithdrawable increases the amount owed to participant. Crediting
// zero is a no-op.
func (l *Ledger) CreditWithdrawable(participant ids.ShortID, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	acct := l.account(participant)
	balance, overflow := new(uint256.Int).AddOverflow(&acct.Withdrawable, amount)
	if overflow {
		return fmt.Errorf("%w: crediting %s", ErrOverflow, participant)
	}
	acct.Withdrawable = *balance
	l.touch(acct)
	return nil
}

// Withdraw pays out participant's entire withdrawable balance and returns the
// amount transferred.
func (l *Ledger) Withdraw(participant ids.ShortID) (*uint256.Int, error) {
	acct, ok := l.accounts[participant]
	if !ok || acct.Withdrawable.IsZero() {
		return nil, ErrInsufficientBalance
	}
	amount := acct.Withdrawable.Clone()
	if l.reserve.Lt(amount) {
		return nil, fmt.Errorf("%w: reserve holds %s, owed %s", ErrInsufficientBalance, l.reserve.Dec(), amount.Dec())
	}
	withdrawn, overflow := new(uint256.Int).AddOverflow(&acct.Withdrawn, amount)
	if overflow {
		return nil, fmt.Errorf("%w: withdrawn total", ErrOverflow)
	}

	acct.Withdrawable.Clear()
	acct.Withdrawn = *withdrawn
	l.reserve.Sub(&l.reserve, amount)
	l.touch(acct)
	return amount, nil
}

// Funds returns participant's cumulative funded amount.
func (l *Ledger) Funds(participant ids.ShortID) *uint256.Int {
	if acct, ok := l.accounts[participant]; ok {
		return acct.Funded.Clone()
	}
	return new(uint256.Int)
}

// Balance returns participant's withdrawable balance.
func (l *Ledger) Balance(participant ids.ShortID) *uint256.Int {
	if acct, ok := l.accounts[participant]; ok {
		return acct.Withdrawable.Clone()
	}
	return new(uint256.Int)
}

// Account returns a copy of participant's account.
func (l *Ledger) Account(participant ids.ShortID) (Account, bool) {
	acct, ok := l.accounts[participant]
	if !ok {
		return Account{ID: participant}, false
	}
	return *acct, true
}

// Reserve returns the total held by the ledger.
func (l *Ledger) Reserve() *uint256.Int {
	return l.reserve.Clone()
}

// Changes returns copies of the accounts modified since the last call to
// ClearChanges and whether the reserve changed.
func (l *Ledger) Changes() ([]Account, bool) {
	accounts := make([]Account, 0, l.dirty.Len())
	for id := range l.dirty {
		accounts = append(accounts, *l.accounts[id])
	}
	return accounts, l.reserveDirty
}

// Dirty reports whether anything changed since the last ClearChanges.
func (l *Ledger) Dirty() bool {
	return l.reserveDirty || l.dirty.Len() > 0
}

func (l *Ledger) ClearChanges() {
	l.dirty = set.NewSet[ids.ShortID](0)
	l.reserveDirty = false
}

// account returns participant's account without inserting it.
func (l *Ledger) account(participant ids.ShortID) *Account {
	if acct, ok := l.accounts[participant]; ok {
		return acct
	}
	return &Account{ID: participant}
}

func (l *Ledger) touch(acct *Account) {
	l.accounts[acct.ID] = acct
	l.dirty.Add(acct.ID)
	l.reserveDirty = true
}
