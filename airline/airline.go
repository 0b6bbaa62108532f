// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package airline

import "github.com/luxfi/ids"

// Status is an airline's position in the admission state machine. Statuses
// only move forward.
type Status uint8

const (
	Unregistered Status = iota
	Registered
	Funded
)

func (s Status) String() string {
	switch s {
	case Unregistered:
		return "Unregistered"
	case Registered:
		return "Registered"
	case Funded:
		return "Funded"
	default:
		return "Unknown"
	}
}

// Admitted reports whether the airline has been registered.
func (s Status) Admitted() bool {
	return s >= Registered
}

// Airline is a supply side participant. A record exists from the first vote
// cast for it, while it is still Unregistered.
type Airline struct {
	ID     ids.ShortID `serialize:"true"`
	Name   string      `serialize:"true"`
	Status Status      `serialize:"true"`
	// Voters are the funded airlines that endorsed admission.
	Voters []ids.ShortID `serialize:"true"`
	// Seq orders airlines by first appearance.
	Seq uint64 `serialize:"true"`
}

// Admission is the outcome of a registration request.
type Admission struct {
	Airline  ids.ShortID
	Admitted bool
	// Votes and Required are zero when admission did not need a vote.
	Votes    int
	Required int
}
