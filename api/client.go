// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/holiman/uint256"
	"github.com/luxfi/ids"

	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/utils/json"
	"github.com/luxfi/surety/utils/units"
)

// Error is a failure reported by the service.
type Error struct {
	Kind    failure.Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether target is a sentinel of the same kind, so callers can
// use errors.Is with the engine's sentinel errors.
func (e *Error) Is(target error) bool {
	var sentinel *failure.Error
	return errors.As(target, &sentinel) && sentinel.Kind == e.Kind
}

// Client calls the JSON-RPC service.
type Client struct {
	uri    string
	client *http.Client
}

// NewClient returns a client for the service served at uri, e.g.
// "http://127.0.0.1:3000/rpc".
func NewClient(uri string) *Client {
	return &Client{
		uri:    uri,
		client: http.DefaultClient,
	}
}

// cleanlyCloseBody drains and closes an HTTP response body so the
// connection can be reused.
func cleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

func (c *Client) call(ctx context.Context, method string, args, reply interface{}) error {
	body, err := json2.EncodeClientRequest(ServiceName+"."+method, args)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uri, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("failed to issue request: %w", err)
	}
	defer func() {
		_ = cleanlyCloseBody(resp.Body)
	}()

	if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
		var rpcErr *json2.Error
		if errors.As(err, &rpcErr) {
			kind, _ := rpcErr.Data.(string)
			return &Error{
				Kind:    failure.Parse(kind),
				Message: rpcErr.Message,
			}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) SetOperational(ctx context.Context, caller ids.ShortID, operational bool) error {
	return c.call(ctx, "setOperational", &SetOperationalArgs{
		CallerArgs:  CallerArgs{Caller: caller.String()},
		Operational: operational,
	}, &EmptyReply{})
}

func (c *Client) GetStatus(ctx context.Context) (*StatusReply, error) {
	reply := &StatusReply{}
	err := c.call(ctx, "getStatus", struct{}{}, reply)
	return reply, err
}

func (c *Client) PruneRequests(ctx context.Context, caller ids.ShortID) (uint64, error) {
	reply := &PruneRequestsReply{}
	err := c.call(ctx, "pruneRequests", &CallerArgs{Caller: caller.String()}, reply)
	return uint64(reply.Pruned), err
}

func (c *Client) RegisterAirline(ctx context.Context, caller, candidate ids.ShortID, name string) (*RegisterAirlineReply, error) {
	reply := &RegisterAirlineReply{}
	err := c.call(ctx, "registerAirline", &RegisterAirlineArgs{
		CallerArgs: CallerArgs{Caller: caller.String()},
		Airline:    candidate.String(),
		Name:       name,
	}, reply)
	return reply, err
}

func (c *Client) FundAirline(ctx context.Context, caller ids.ShortID, amount *uint256.Int) (*AirlineReply, error) {
	reply := &AirlineReply{}
	err := c.call(ctx, "fundAirline", &FundAirlineArgs{
		CallerArgs: CallerArgs{Caller: caller.String()},
		Amount:     units.NewAmount(amount),
	}, reply)
	return reply, err
}

func (c *Client) GetAirline(ctx context.Context, id ids.ShortID) (*AirlineReply, error) {
	reply := &AirlineReply{}
	err := c.call(ctx, "getAirline", &AirlineArgs{Airline: id.String()}, reply)
	return reply, err
}

func (c *Client) GetAirlineCounts(ctx context.Context) (admitted int, funded int, err error) {
	reply := &AirlineCountsReply{}
	err = c.call(ctx, "getAirlineCounts", struct{}{}, reply)
	return reply.Admitted, reply.Funded, err
}

func (c *Client) GetFunds(ctx context.Context, participant ids.ShortID) (*uint256.Int, error) {
	reply := &AmountReply{}
	err := c.call(ctx, "getFunds", &ParticipantArgs{Participant: participant.String()}, reply)
	return reply.Amount.Int(), err
}

func (c *Client) RegisterFlight(ctx context.Context, caller ids.ShortID, code string, departure uint64) (*FlightReply, error) {
	reply := &FlightReply{}
	err := c.call(ctx, "registerFlight", &RegisterFlightArgs{
		CallerArgs: CallerArgs{Caller: caller.String()},
		Code:       code,
		Departure:  json.Uint64(departure),
	}, reply)
	return reply, err
}

func (c *Client) GetFlight(ctx context.Context, key ids.ID) (*FlightReply, error) {
	reply := &FlightReply{}
	err := c.call(ctx, "getFlight", &FlightArgs{Key: key.String()}, reply)
	return reply, err
}

func (c *Client) BuyInsurance(ctx context.Context, passenger ids.ShortID, flightKey ids.ID, amount *uint256.Int) (*BuyInsuranceReply, error) {
	reply := &BuyInsuranceReply{}
	err := c.call(ctx, "buyInsurance", &BuyInsuranceArgs{
		CallerArgs: CallerArgs{Caller: passenger.String()},
		FlightArgs: FlightArgs{Key: flightKey.String()},
		Amount:     units.NewAmount(amount),
	}, reply)
	return reply, err
}

func (c *Client) GetPolicy(ctx context.Context, passenger ids.ShortID, flightKey ids.ID) (*PolicyReply, error) {
	reply := &PolicyReply{}
	err := c.call(ctx, "getPolicy", &PolicyArgs{
		FlightArgs: FlightArgs{Key: flightKey.String()},
		Passenger:  passenger.String(),
	}, reply)
	return reply, err
}

func (c *Client) GetBalance(ctx context.Context, participant ids.ShortID) (*uint256.Int, error) {
	reply := &AmountReply{}
	err := c.call(ctx, "getBalance", &ParticipantArgs{Participant: participant.String()}, reply)
	return reply.Amount.Int(), err
}

func (c *Client) Withdraw(ctx context.Context, caller ids.ShortID) (*uint256.Int, error) {
	reply := &AmountReply{}
	err := c.call(ctx, "withdraw", &CallerArgs{Caller: caller.String()}, reply)
	return reply.Amount.Int(), err
}

func (c *Client) GetRegistrationFee(ctx context.Context) (*uint256.Int, error) {
	reply := &AmountReply{}
	err := c.call(ctx, "getRegistrationFee", struct{}{}, reply)
	return reply.Amount.Int(), err
}

func (c *Client) RegisterOracle(ctx context.Context, caller ids.ShortID, fee *uint256.Int) ([]uint8, error) {
	reply := &IndexesReply{}
	err := c.call(ctx, "registerOracle", &RegisterOracleArgs{
		CallerArgs: CallerArgs{Caller: caller.String()},
		Fee:        units.NewAmount(fee),
	}, reply)
	return toIndexes(reply.Indexes), err
}

func (c *Client) GetMyIndexes(ctx context.Context, caller ids.ShortID) ([]uint8, error) {
	reply := &IndexesReply{}
	err := c.call(ctx, "getMyIndexes", &CallerArgs{Caller: caller.String()}, reply)
	return toIndexes(reply.Indexes), err
}

func (c *Client) RequestStatus(
	ctx context.Context,
	caller ids.ShortID,
	airline ids.ShortID,
	code string,
	departure uint64,
) (*RequestStatusReply, error) {
	reply := &RequestStatusReply{}
	err := c.call(ctx, "requestStatus", &RequestStatusArgs{
		CallerArgs: CallerArgs{Caller: caller.String()},
		Airline:    airline.String(),
		Code:       code,
		Departure:  json.Uint64(departure),
	}, reply)
	return reply, err
}

func (c *Client) SubmitResponse(
	ctx context.Context,
	caller ids.ShortID,
	index uint8,
	airline ids.ShortID,
	code string,
	departure uint64,
	status flight.Status,
) (*SubmitResponseReply, error) {
	reply := &SubmitResponseReply{}
	err := c.call(ctx, "submitResponse", &SubmitResponseArgs{
		CallerArgs: CallerArgs{Caller: caller.String()},
		Index:      index,
		Airline:    airline.String(),
		Code:       code,
		Departure:  json.Uint64(departure),
		Status:     uint8(status),
	}, reply)
	return reply, err
}

func (c *Client) ListOpenRequests(ctx context.Context) ([]RequestReply, error) {
	reply := &ListOpenRequestsReply{}
	err := c.call(ctx, "listOpenRequests", struct{}{}, reply)
	return reply.Requests, err
}

func (c *Client) GetRequest(ctx context.Context, key ids.ID) (*RequestReply, error) {
	reply := &RequestReply{}
	err := c.call(ctx, "getRequest", &RequestArgs{Key: key.String()}, reply)
	return reply, err
}

func toIndexes(in []int) []uint8 {
	out := make([]uint8, len(in))
	for i, index := range in {
		out[i] = uint8(index)
	}
	return out
}
