// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/surety"
	"github.com/luxfi/surety/airline"
	"github.com/luxfi/surety/api"
	"github.com/luxfi/surety/config"
	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/ledger"
	"github.com/luxfi/surety/oracle"
	"github.com/luxfi/surety/utils/units"
)

const (
	testCode      = "ND1309"
	testDeparture = uint64(1_700_000_000)
)

type testServer struct {
	vm       *surety.VM
	client   *api.Client
	uri      string
	registry *prometheus.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	require := require.New(t)

	factory := &surety.Factory{Config: config.DefaultConfig()}
	created, err := factory.New(log.NewNoOpLogger())
	require.NoError(err)
	vm := created.(*surety.VM)

	registry := prometheus.NewRegistry()
	require.NoError(vm.Initialize(context.Background(), memdb.New(), registry, nil))

	handlers, err := vm.CreateHandlers(context.Background())
	require.NoError(err)
	mux := http.NewServeMux()
	mux.Handle("/rpc", handlers["/rpc"])
	mux.Handle("/v1/", http.StripPrefix("/v1", handlers["/v1"]))
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		_ = vm.Shutdown(context.Background())
	})
	return &testServer{
		vm:       vm,
		client:   api.NewClient(server.URL + "/rpc"),
		uri:      server.URL,
		registry: registry,
	}
}

func TestBootstrapAndStatus(t *testing.T) {
	require := require.New(t)

	s := newTestServer(t)
	ctx := context.Background()
	owner := ids.GenerateTestShortID()
	first := ids.GenerateTestShortID()

	status, err := s.client.GetStatus(ctx)
	require.NoError(err)
	require.False(status.Bootstrapped)

	// Only the operator may bootstrap; the RPC surface does not serve it.
	body, err := json2.EncodeClientRequest(api.ServiceName+".bootstrap", map[string]string{
		"owner":   owner.String(),
		"airline": first.String(),
	})
	require.NoError(err)
	resp, err := http.Post(s.uri+"/rpc", "application/json", bytes.NewReader(body))
	require.NoError(err)
	require.Error(json2.DecodeClientResponse(resp.Body, &struct{}{}))
	require.NoError(resp.Body.Close())

	status, err = s.client.GetStatus(ctx)
	require.NoError(err)
	require.False(status.Bootstrapped)

	require.NoError(s.vm.Bootstrap(owner, first, "First Air"))

	status, err = s.client.GetStatus(ctx)
	require.NoError(err)
	require.True(status.Bootstrapped)
	require.True(status.Operational)
	require.Equal(owner.String(), status.Owner)
	require.Equal(units.Ethers(10), status.Reserve.Int())
	require.Equal(1, status.Admitted)
	require.Equal(1, status.Funded)

	err = s.client.SetOperational(ctx, first, false)
	var apiErr *api.Error
	require.ErrorAs(err, &apiErr)
	require.Equal(failure.Unauthorized, apiErr.Kind)
	require.NoError(s.client.SetOperational(ctx, owner, false))

	_, err = s.client.RegisterAirline(ctx, first, ids.GenerateTestShortID(), "Second Air")
	require.ErrorIs(err, surety.ErrNotOperational)
}

func TestAirlineCalls(t *testing.T) {
	require := require.New(t)

	s := newTestServer(t)
	ctx := context.Background()
	first := ids.GenerateTestShortID()
	require.NoError(s.vm.Bootstrap(ids.GenerateTestShortID(), first, "First Air"))

	second := ids.GenerateTestShortID()
	reply, err := s.client.RegisterAirline(ctx, first, second, "Second Air")
	require.NoError(err)
	require.True(reply.Admitted)

	_, err = s.client.RegisterAirline(ctx, second, ids.GenerateTestShortID(), "Third Air")
	require.ErrorIs(err, airline.ErrNotFunded)

	record, err := s.client.FundAirline(ctx, second, units.Ethers(10))
	require.NoError(err)
	require.True(record.Funded)
	require.Equal("Second Air", record.Name)

	funds, err := s.client.GetFunds(ctx, second)
	require.NoError(err)
	require.Equal(units.Ethers(10), funds)

	admitted, funded, err := s.client.GetAirlineCounts(ctx)
	require.NoError(err)
	require.Equal(2, admitted)
	require.Equal(2, funded)

	unknown, err := s.client.GetAirline(ctx, ids.GenerateTestShortID())
	require.NoError(err)
	require.False(unknown.Registered)
	require.True(unknown.Funds.Int().IsZero())
}

func TestInsuranceCalls(t *testing.T) {
	require := require.New(t)

	s := newTestServer(t)
	ctx := context.Background()
	first := ids.GenerateTestShortID()
	require.NoError(s.vm.Bootstrap(ids.GenerateTestShortID(), first, "First Air"))

	f, err := s.client.RegisterFlight(ctx, first, testCode, testDeparture)
	require.NoError(err)
	key := flight.KeyOf(first, testCode, testDeparture)
	require.Equal(key.String(), f.Key)
	require.Equal("Unknown", f.StatusName)

	got, err := s.client.GetFlight(ctx, key)
	require.NoError(err)
	require.Equal(testCode, got.Code)
	require.Equal(testDeparture, uint64(got.Departure))

	passenger := ids.GenerateTestShortID()
	receipt, err := s.client.BuyInsurance(ctx, passenger, key, units.Ethers(2))
	require.NoError(err)
	require.Equal(units.Ethers(1), receipt.Premium.Int())
	require.Equal(units.Ethers(1), receipt.Refund.Int())

	policy, err := s.client.GetPolicy(ctx, passenger, key)
	require.NoError(err)
	require.False(policy.Credited)
	_, err = s.client.GetPolicy(ctx, ids.GenerateTestShortID(), key)
	require.True(failure.Is(asFailure(err), failure.NotRegistered))

	balance, err := s.client.GetBalance(ctx, passenger)
	require.NoError(err)
	require.True(balance.IsZero())
	_, err = s.client.Withdraw(ctx, passenger)
	require.ErrorIs(err, ledger.ErrInsufficientBalance)
}

func TestOracleCalls(t *testing.T) {
	require := require.New(t)

	s := newTestServer(t)
	ctx := context.Background()
	first := ids.GenerateTestShortID()
	require.NoError(s.vm.Bootstrap(ids.GenerateTestShortID(), first, "First Air"))
	_, err := s.client.RegisterFlight(ctx, first, testCode, testDeparture)
	require.NoError(err)

	fee, err := s.client.GetRegistrationFee(ctx)
	require.NoError(err)
	require.Equal(units.Ethers(1), fee)

	id := ids.GenerateTestShortID()
	_, err = s.client.RegisterOracle(ctx, id, units.Ethers(2))
	require.ErrorIs(err, oracle.ErrWrongFee)
	indexes, err := s.client.RegisterOracle(ctx, id, fee)
	require.NoError(err)
	require.Len(indexes, 3)
	mine, err := s.client.GetMyIndexes(ctx, id)
	require.NoError(err)
	require.Equal(indexes, mine)

	req, err := s.client.RequestStatus(ctx, first, first, testCode, testDeparture)
	require.NoError(err)
	require.True(req.Created)
	require.Equal("Open", req.State)

	open, err := s.client.ListOpenRequests(ctx)
	require.NoError(err)
	require.Len(open, 1)
	require.Equal(req.Key, open[0].Key)

	// Answer with an index the oracle does not hold.
	foreign := uint8(0)
	for slices.Contains(indexes, foreign) {
		foreign++
	}
	_, err = s.client.SubmitResponse(ctx, id, foreign, first, testCode, testDeparture, flight.LateAirline)
	require.ErrorIs(err, oracle.ErrIndexMismatch)

	key, err := ids.FromString(req.Key)
	require.NoError(err)
	stored, err := s.client.GetRequest(ctx, key)
	require.NoError(err)
	require.Zero(stored.Responses)

	_, err = s.client.GetRequest(ctx, ids.GenerateTestID())
	require.ErrorIs(err, oracle.ErrNoSuchRequest)
}

func TestInvalidArguments(t *testing.T) {
	require := require.New(t)

	s := newTestServer(t)
	ctx := context.Background()

	first := ids.GenerateTestShortID()
	require.NoError(s.vm.Bootstrap(ids.GenerateTestShortID(), first, "First Air"))

	_, err := s.client.RegisterAirline(ctx, first, ids.ShortEmpty, "Nameless Air")
	require.True(failure.Is(asFailure(err), failure.InvalidArgument))

	_, err = s.client.GetRequest(ctx, ids.Empty)
	require.ErrorIs(err, oracle.ErrNoSuchRequest)
}

func TestRequestMetrics(t *testing.T) {
	require := require.New(t)

	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.client.GetStatus(ctx)
	require.NoError(err)
	_, err = s.client.Withdraw(ctx, ids.GenerateTestShortID())
	require.ErrorIs(err, surety.ErrNotBootstrapped)

	count, err := testutil.GatherAndCount(s.registry, "surety_api_requests_total")
	require.NoError(err)
	require.Equal(2, count)

	count, err = testutil.GatherAndCount(s.registry, "surety_api_request_errors_total")
	require.NoError(err)
	require.Equal(1, count)
}

// asFailure converts a client error into a tagged error for kind checks.
func asFailure(err error) error {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	return failure.New(apiErr.Kind, apiErr.Message)
}
