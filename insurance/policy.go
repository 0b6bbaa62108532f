// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package insurance

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
)

// PolicyKey identifies a policy.
type PolicyKey struct {
	Flight    ids.ID
	Passenger ids.ShortID
}

// Policy is a passenger's insurance on one flight. Policies are kept after
// payout as history.
type Policy struct {
	Flight    ids.ID      `serialize:"true"`
	Passenger ids.ShortID `serialize:"true"`
	Premium   uint256.Int `serialize:"true"`
	// Credit is zero until the flight finalizes with a covered status.
	Credit uint256.Int `serialize:"true"`
	Seq    uint64      `serialize:"true"`
}

func (p *Policy) Key() PolicyKey {
	return PolicyKey{Flight: p.Flight, Passenger: p.Passenger}
}

// Credited reports whether the policy has paid out.
func (p *Policy) Credited() bool {
	return !p.Credit.IsZero()
}

// Receipt is returned by a successful purchase.
type Receipt struct {
	Policy Policy
	// Refund is the part of the offered amount above the cap.
	Refund *uint256.Int
}

// Payout is a credit made to a passenger on finalization.
type Payout struct {
	Passenger ids.ShortID
	Flight    ids.ID
	Amount    *uint256.Int
}
