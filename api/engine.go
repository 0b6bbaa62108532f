// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api serves the engine over JSON-RPC and a read only REST surface,
// and provides a client for the JSON-RPC service.
package api

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/surety/airline"
	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/insurance"
	"github.com/luxfi/surety/oracle"
)

// Engine is the operation set served by the API. Bootstrapping is left to
// the operator tooling and is not served.
type Engine interface {
	SetOperational(caller ids.ShortID, operational bool) error
	PruneRequests(caller ids.ShortID) (int, error)
	IsOperational() bool
	IsBootstrapped() bool
	Owner() ids.ShortID
	Reserve() *uint256.Int

	RegisterAirline(requester, candidate ids.ShortID, name string) (airline.Admission, error)
	FundAirline(caller ids.ShortID, amount *uint256.Int) (airline.Airline, error)
	IsAirlineRegistered(ids.ShortID) bool
	IsAirlineFunded(ids.ShortID) bool
	AirlineVotes(ids.ShortID) int
	GetAirline(ids.ShortID) (airline.Airline, bool)
	AirlineCounts() (admitted int, funded int)
	ListAirlines() []airline.Airline
	GetFunds(ids.ShortID) *uint256.Int

	RegisterFlight(caller ids.ShortID, code string, departure uint64) (flight.Flight, error)
	GetFlight(ids.ID) (flight.Flight, bool)
	FlightStatus(ids.ID) (flight.Status, error)
	IsFlightRegistered(ids.ID) bool
	ListFlights(airline ids.ShortID) []flight.Flight

	BuyInsurance(passenger ids.ShortID, flightKey ids.ID, offered *uint256.Int) (insurance.Receipt, error)
	Withdraw(participant ids.ShortID) (*uint256.Int, error)
	GetPolicy(passenger ids.ShortID, flightKey ids.ID) (insurance.Policy, bool)
	PoliciesFor(flightKey ids.ID) []insurance.Policy
	GetBalance(participant ids.ShortID) *uint256.Int

	RegistrationFee() *uint256.Int
	RegisterOracle(id ids.ShortID, fee *uint256.Int) (oracle.Oracle, error)
	GetMyIndexes(id ids.ShortID) ([]uint8, error)
	RequestStatus(requester, airline ids.ShortID, code string, departure uint64) (oracle.Request, bool, error)
	SubmitResponse(
		oracleID ids.ShortID,
		index uint8,
		airline ids.ShortID,
		code string,
		departure uint64,
		status flight.Status,
	) (oracle.Outcome, error)
	ListOpenRequests() []oracle.Request
	GetRequest(key ids.ID) (oracle.Request, oracle.RequestState, bool)
}
