// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/surety/airline"
	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/insurance"
	"github.com/luxfi/surety/oracle"
	"github.com/luxfi/surety/utils/json"
	"github.com/luxfi/surety/utils/units"
)

var (
	errInvalidID = failure.New(failure.InvalidArgument, "invalid id")
	errNoPolicy  = failure.New(failure.NotRegistered, "passenger holds no policy on flight")
)

// EmptyReply indicates that an api doesn't have a response to return.
type EmptyReply struct{}

// CallerArgs identifies the participant issuing a call.
type CallerArgs struct {
	Caller string `json:"caller"`
}

// FlightArgs names a flight either by key or by its identifying fields.
type FlightArgs struct {
	Key       string      `json:"key,omitempty"`
	Airline   string      `json:"airline,omitempty"`
	Code      string      `json:"code,omitempty"`
	Departure json.Uint64 `json:"departure"`
}

// flightKey returns the key named by a. Key takes precedence.
func (a *FlightArgs) flightKey() (ids.ID, error) {
	if a.Key != "" {
		return parseID("key", a.Key)
	}
	airlineID, err := parseShortID("airline", a.Airline)
	if err != nil {
		return ids.Empty, err
	}
	return flight.KeyOf(airlineID, a.Code, uint64(a.Departure)), nil
}

type AmountReply struct {
	Amount units.Amount `json:"amount"`
}

type AirlineReply struct {
	Airline    string       `json:"airline"`
	Name       string       `json:"name"`
	Status     string       `json:"status"`
	Registered bool         `json:"registered"`
	Funded     bool         `json:"funded"`
	Votes      int          `json:"votes"`
	Funds      units.Amount `json:"funds"`
}

type FlightReply struct {
	Key        string      `json:"key"`
	Airline    string      `json:"airline"`
	Code       string      `json:"code"`
	Departure  json.Uint64 `json:"departure"`
	Status     uint8       `json:"status"`
	StatusName string      `json:"statusName"`
	UpdatedAt  json.Uint64 `json:"updatedAt"`
}

type PolicyReply struct {
	Flight    string       `json:"flight"`
	Passenger string       `json:"passenger"`
	Premium   units.Amount `json:"premium"`
	Credit    units.Amount `json:"credit"`
	Credited  bool         `json:"credited"`
}

type RequestReply struct {
	Key       string      `json:"key"`
	Index     int         `json:"index"`
	Flight    string      `json:"flight"`
	Airline   string      `json:"airline"`
	Code      string      `json:"code"`
	Departure json.Uint64 `json:"departure"`
	Requester string      `json:"requester"`
	OpenedAt  json.Uint64 `json:"openedAt"`
	Responses int         `json:"responses"`
	State     string      `json:"state"`
	Status    uint8       `json:"status"`
}

func parseID(field, s string) (ids.ID, error) {
	id, err := ids.FromString(s)
	if err != nil {
		return ids.Empty, fmt.Errorf("%w: %s %q: %w", errInvalidID, field, s, err)
	}
	return id, nil
}

func parseShortID(field, s string) (ids.ShortID, error) {
	id, err := ids.ShortFromString(s)
	if err != nil {
		return ids.ShortEmpty, fmt.Errorf("%w: %s %q: %w", errInvalidID, field, s, err)
	}
	return id, nil
}

func amountOf(v *uint256.Int) units.Amount {
	if v == nil {
		return units.Amount{}
	}
	return units.NewAmount(v)
}

func indexes(in []uint8) []int {
	out := make([]int, len(in))
	for i, index := range in {
		out[i] = int(index)
	}
	return out
}

func newAirlineReply(a airline.Airline, funds *uint256.Int) AirlineReply {
	return AirlineReply{
		Airline:    a.ID.String(),
		Name:       a.Name,
		Status:     a.Status.String(),
		Registered: a.Status.Admitted(),
		Funded:     a.Status == airline.Funded,
		Votes:      len(a.Voters),
		Funds:      amountOf(funds),
	}
}

func newFlightReply(f flight.Flight) FlightReply {
	return FlightReply{
		Key:        f.Key.String(),
		Airline:    f.Airline.String(),
		Code:       f.Code,
		Departure:  json.Uint64(f.Departure),
		Status:     uint8(f.Status),
		StatusName: f.Status.String(),
		UpdatedAt:  json.Uint64(f.UpdatedAt),
	}
}

func newPolicyReply(p insurance.Policy) PolicyReply {
	return PolicyReply{
		Flight:    p.Flight.String(),
		Passenger: p.Passenger.String(),
		Premium:   units.NewAmount(&p.Premium),
		Credit:    units.NewAmount(&p.Credit),
		Credited:  p.Credited(),
	}
}

func newRequestReply(r oracle.Request, state oracle.RequestState) RequestReply {
	return RequestReply{
		Key:       r.Key.String(),
		Index:     int(r.Index),
		Flight:    r.Flight.String(),
		Airline:   r.Airline.String(),
		Code:      r.Code,
		Departure: json.Uint64(r.Departure),
		Requester: r.Requester.String(),
		OpenedAt:  json.Uint64(time.Unix(0, r.OpenedAt).Unix()),
		Responses: len(r.Responses),
		State:     state.String(),
		Status:    uint8(r.Status),
	}
}
