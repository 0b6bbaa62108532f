// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/surety/flight"
)

// Message signals an applied operation to whoever drains the VM's
// notification channel. Messages are only sent after the operation
// committed.
type Message struct {
	Type        MessageType
	Participant ids.ShortID
	// Key is the flight key, or the request key for StatusRequested and
	// ResponseSubmitted.
	Key    ids.ID
	Index  uint8
	Status flight.Status
	Amount *uint256.Int
}

// MessageType identifies the message kind
type MessageType uint32

const (
	AirlineRegistered MessageType = iota
	AirlineVoted
	AirlineFunded
	FlightRegistered
	InsurancePurchased
	// StatusRequested asks responders holding Index to report on Key.
	StatusRequested
	ResponseSubmitted
	FlightStatusFinalized
	PassengerCredited
	Withdrawn
	OperationalChanged
)

// String returns the string representation of the message type
func (m MessageType) String() string {
	switch m {
	case AirlineRegistered:
		return "AirlineRegistered"
	case AirlineVoted:
		return "AirlineVoted"
	case AirlineFunded:
		return "AirlineFunded"
	case FlightRegistered:
		return "FlightRegistered"
	case InsurancePurchased:
		return "InsurancePurchased"
	case StatusRequested:
		return "StatusRequested"
	case ResponseSubmitted:
		return "ResponseSubmitted"
	case FlightStatusFinalized:
		return "FlightStatusFinalized"
	case PassengerCredited:
		return "PassengerCredited"
	case Withdrawn:
		return "Withdrawn"
	case OperationalChanged:
		return "OperationalChanged"
	default:
		return "Unknown"
	}
}
