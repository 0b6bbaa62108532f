// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/luxfi/log"

	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/oracle"
	"github.com/luxfi/surety/utils/json"
	"github.com/luxfi/surety/utils/units"
)

// Service is the JSON-RPC service registered as "surety".
type Service struct {
	engine Engine
	log    log.Logger
}

// rpcError returns err as a JSON-RPC error whose data member is the failure
// kind.
func rpcError(err error) error {
	if err == nil {
		return nil
	}
	return &json2.Error{
		Code:    json2.E_SERVER,
		Message: err.Error(),
		Data:    failure.KindOf(err).String(),
	}
}

func (s *Service) called(method string) {
	s.log.Debug("API called",
		log.String("service", "surety"),
		log.String("method", method),
	)
}

type SetOperationalArgs struct {
	CallerArgs
	Operational bool `json:"operational"`
}

func (s *Service) SetOperational(_ *http.Request, args *SetOperationalArgs, _ *EmptyReply) error {
	s.called("setOperational")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	return rpcError(s.engine.SetOperational(caller, args.Operational))
}

type StatusReply struct {
	Bootstrapped bool         `json:"bootstrapped"`
	Operational  bool         `json:"operational"`
	Owner        string       `json:"owner"`
	Reserve      units.Amount `json:"reserve"`
	Admitted     int          `json:"admitted"`
	Funded       int          `json:"funded"`
}

// GetStatus returns engine wide values.
func (s *Service) GetStatus(_ *http.Request, _ *struct{}, reply *StatusReply) error {
	s.called("getStatus")

	*reply = s.status()
	return nil
}

func (s *Service) status() StatusReply {
	admitted, funded := s.engine.AirlineCounts()
	return StatusReply{
		Bootstrapped: s.engine.IsBootstrapped(),
		Operational:  s.engine.IsOperational(),
		Owner:        s.engine.Owner().String(),
		Reserve:      amountOf(s.engine.Reserve()),
		Admitted:     admitted,
		Funded:       funded,
	}
}

type PruneRequestsReply struct {
	Pruned json.Uint64 `json:"pruned"`
}

func (s *Service) PruneRequests(_ *http.Request, args *CallerArgs, reply *PruneRequestsReply) error {
	s.called("pruneRequests")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	pruned, err := s.engine.PruneRequests(caller)
	reply.Pruned = json.Uint64(pruned)
	return rpcError(err)
}

type RegisterAirlineArgs struct {
	CallerArgs
	Airline string `json:"airline"`
	Name    string `json:"name"`
}

type RegisterAirlineReply struct {
	Admitted bool `json:"admitted"`
	Votes    int  `json:"votes"`
	Required int  `json:"required"`
}

// RegisterAirline admits, or votes to admit, an airline.
func (s *Service) RegisterAirline(_ *http.Request, args *RegisterAirlineArgs, reply *RegisterAirlineReply) error {
	s.called("registerAirline")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	candidate, err := parseShortID("airline", args.Airline)
	if err != nil {
		return rpcError(err)
	}
	admission, err := s.engine.RegisterAirline(caller, candidate, args.Name)
	if err != nil {
		return rpcError(err)
	}
	reply.Admitted = admission.Admitted
	reply.Votes = admission.Votes
	reply.Required = admission.Required
	return nil
}

type FundAirlineArgs struct {
	CallerArgs
	Amount units.Amount `json:"amount"`
}

func (s *Service) FundAirline(_ *http.Request, args *FundAirlineArgs, reply *AirlineReply) error {
	s.called("fundAirline")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	record, err := s.engine.FundAirline(caller, args.Amount.Int())
	if err != nil {
		return rpcError(err)
	}
	*reply = newAirlineReply(record, s.engine.GetFunds(caller))
	return nil
}

type AirlineArgs struct {
	Airline string `json:"airline"`
}

// GetAirline returns an airline's record. Unknown airlines are reported as
// Unregistered.
func (s *Service) GetAirline(_ *http.Request, args *AirlineArgs, reply *AirlineReply) error {
	s.called("getAirline")

	id, err := parseShortID("airline", args.Airline)
	if err != nil {
		return rpcError(err)
	}
	record, _ := s.engine.GetAirline(id)
	*reply = newAirlineReply(record, s.engine.GetFunds(id))
	reply.Votes = s.engine.AirlineVotes(id)
	return nil
}

type AirlineCountsReply struct {
	Admitted int `json:"admitted"`
	Funded   int `json:"funded"`
}

func (s *Service) GetAirlineCounts(_ *http.Request, _ *struct{}, reply *AirlineCountsReply) error {
	s.called("getAirlineCounts")

	reply.Admitted, reply.Funded = s.engine.AirlineCounts()
	return nil
}

type ParticipantArgs struct {
	Participant string `json:"participant"`
}

// GetFunds returns a participant's cumulative funding.
func (s *Service) GetFunds(_ *http.Request, args *ParticipantArgs, reply *AmountReply) error {
	s.called("getFunds")

	id, err := parseShortID("participant", args.Participant)
	if err != nil {
		return rpcError(err)
	}
	reply.Amount = amountOf(s.engine.GetFunds(id))
	return nil
}

type RegisterFlightArgs struct {
	CallerArgs
	Code      string      `json:"code"`
	Departure json.Uint64 `json:"departure"`
}

// RegisterFlight registers a flight operated by the caller.
func (s *Service) RegisterFlight(_ *http.Request, args *RegisterFlightArgs, reply *FlightReply) error {
	s.called("registerFlight")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	f, err := s.engine.RegisterFlight(caller, args.Code, uint64(args.Departure))
	if err != nil {
		return rpcError(err)
	}
	*reply = newFlightReply(f)
	return nil
}

func (s *Service) GetFlight(_ *http.Request, args *FlightArgs, reply *FlightReply) error {
	s.called("getFlight")

	key, err := args.flightKey()
	if err != nil {
		return rpcError(err)
	}
	f, ok := s.engine.GetFlight(key)
	if !ok {
		return rpcError(flight.ErrUnknownFlight)
	}
	*reply = newFlightReply(f)
	return nil
}

type BuyInsuranceArgs struct {
	CallerArgs
	FlightArgs
	Amount units.Amount `json:"amount"`
}

type BuyInsuranceReply struct {
	Premium units.Amount `json:"premium"`
	Refund  units.Amount `json:"refund"`
}

// BuyInsurance insures the caller on a flight. Refund is the part of the
// amount above the cap that was not retained.
func (s *Service) BuyInsurance(_ *http.Request, args *BuyInsuranceArgs, reply *BuyInsuranceReply) error {
	s.called("buyInsurance")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	key, err := args.flightKey()
	if err != nil {
		return rpcError(err)
	}
	receipt, err := s.engine.BuyInsurance(caller, key, args.Amount.Int())
	if err != nil {
		return rpcError(err)
	}
	reply.Premium = units.NewAmount(&receipt.Policy.Premium)
	reply.Refund = amountOf(receipt.Refund)
	return nil
}

type PolicyArgs struct {
	FlightArgs
	Passenger string `json:"passenger"`
}

func (s *Service) GetPolicy(_ *http.Request, args *PolicyArgs, reply *PolicyReply) error {
	s.called("getPolicy")

	passenger, err := parseShortID("passenger", args.Passenger)
	if err != nil {
		return rpcError(err)
	}
	key, err := args.flightKey()
	if err != nil {
		return rpcError(err)
	}
	policy, ok := s.engine.GetPolicy(passenger, key)
	if !ok {
		return rpcError(errNoPolicy)
	}
	*reply = newPolicyReply(policy)
	return nil
}

// GetBalance returns a participant's withdrawable balance.
func (s *Service) GetBalance(_ *http.Request, args *ParticipantArgs, reply *AmountReply) error {
	s.called("getBalance")

	id, err := parseShortID("participant", args.Participant)
	if err != nil {
		return rpcError(err)
	}
	reply.Amount = amountOf(s.engine.GetBalance(id))
	return nil
}

// Withdraw pays out the caller's withdrawable balance.
func (s *Service) Withdraw(_ *http.Request, args *CallerArgs, reply *AmountReply) error {
	s.called("withdraw")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	amount, err := s.engine.Withdraw(caller)
	if err != nil {
		return rpcError(err)
	}
	reply.Amount = amountOf(amount)
	return nil
}

func (s *Service) GetRegistrationFee(_ *http.Request, _ *struct{}, reply *AmountReply) error {
	s.called("getRegistrationFee")

	reply.Amount = amountOf(s.engine.RegistrationFee())
	return nil
}

type RegisterOracleArgs struct {
	CallerArgs
	Fee units.Amount `json:"fee"`
}

type IndexesReply struct {
	Indexes []int `json:"indexes"`
}

func (s *Service) RegisterOracle(_ *http.Request, args *RegisterOracleArgs, reply *IndexesReply) error {
	s.called("registerOracle")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	registered, err := s.engine.RegisterOracle(caller, args.Fee.Int())
	if err != nil {
		return rpcError(err)
	}
	reply.Indexes = indexes(registered.Indexes)
	return nil
}

// GetMyIndexes returns the caller's assigned indexes.
func (s *Service) GetMyIndexes(_ *http.Request, args *CallerArgs, reply *IndexesReply) error {
	s.called("getMyIndexes")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	assigned, err := s.engine.GetMyIndexes(caller)
	if err != nil {
		return rpcError(err)
	}
	reply.Indexes = indexes(assigned)
	return nil
}

type RequestStatusArgs struct {
	CallerArgs
	Airline   string      `json:"airline"`
	Code      string      `json:"code"`
	Departure json.Uint64 `json:"departure"`
}

type RequestStatusReply struct {
	RequestReply
	Created bool `json:"created"`
}

// RequestStatus asks oracles to report a flight's status.
func (s *Service) RequestStatus(_ *http.Request, args *RequestStatusArgs, reply *RequestStatusReply) error {
	s.called("requestStatus")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	airlineID, err := parseShortID("airline", args.Airline)
	if err != nil {
		return rpcError(err)
	}
	req, created, err := s.engine.RequestStatus(caller, airlineID, args.Code, uint64(args.Departure))
	if err != nil {
		return rpcError(err)
	}
	reply.RequestReply = newRequestReply(req, oracle.Open)
	reply.Created = created
	return nil
}

type SubmitResponseArgs struct {
	CallerArgs
	Index     uint8       `json:"index"`
	Airline   string      `json:"airline"`
	Code      string      `json:"code"`
	Departure json.Uint64 `json:"departure"`
	Status    uint8       `json:"status"`
}

type SubmitResponseReply struct {
	Count     int  `json:"count"`
	Finalized bool `json:"finalized"`
	Payouts   int  `json:"payouts"`
}

// SubmitResponse reports a flight status on behalf of the calling oracle.
func (s *Service) SubmitResponse(_ *http.Request, args *SubmitResponseArgs, reply *SubmitResponseReply) error {
	s.called("submitResponse")

	caller, err := parseShortID("caller", args.Caller)
	if err != nil {
		return rpcError(err)
	}
	airlineID, err := parseShortID("airline", args.Airline)
	if err != nil {
		return rpcError(err)
	}
	outcome, err := s.engine.SubmitResponse(
		caller,
		args.Index,
		airlineID,
		args.Code,
		uint64(args.Departure),
		flight.Status(args.Status),
	)
	if err != nil {
		return rpcError(err)
	}
	reply.Count = outcome.Count
	reply.Finalized = outcome.Finalized
	reply.Payouts = len(outcome.Payouts)
	return nil
}

type ListOpenRequestsReply struct {
	Requests []RequestReply `json:"requests"`
}

func (s *Service) ListOpenRequests(_ *http.Request, _ *struct{}, reply *ListOpenRequestsReply) error {
	s.called("listOpenRequests")

	reply.Requests = s.openRequests()
	return nil
}

func (s *Service) openRequests() []RequestReply {
	open := s.engine.ListOpenRequests()
	requests := make([]RequestReply, len(open))
	for i, req := range open {
		requests[i] = newRequestReply(req, oracle.Open)
	}
	return requests
}

type RequestArgs struct {
	Key string `json:"key"`
}

func (s *Service) GetRequest(_ *http.Request, args *RequestArgs, reply *RequestReply) error {
	s.called("getRequest")

	key, err := parseID("key", args.Key)
	if err != nil {
		return rpcError(err)
	}
	req, state, ok := s.engine.GetRequest(key)
	if !ok {
		return rpcError(oracle.ErrNoSuchRequest)
	}
	*reply = newRequestReply(req, state)
	return nil
}
