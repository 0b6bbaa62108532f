// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state persists engine records. Writes are buffered until Commit
// and discarded by Abort.
package state

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"

	"github.com/luxfi/surety/airline"
	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/insurance"
	"github.com/luxfi/surety/ledger"
	"github.com/luxfi/surety/oracle"
)

var (
	accountPrefix = []byte("account")
	airlinePrefix = []byte("airline")
	flightPrefix  = []byte("flight")
	policyPrefix  = []byte("policy")
	oraclePrefix  = []byte("oracle")
	requestPrefix = []byte("request")
	metaPrefix    = []byte("meta")

	metaKey = []byte("engine")
)

// Meta holds engine wide values.
type Meta struct {
	Owner        ids.ShortID `serialize:"true"`
	Bootstrapped bool        `serialize:"true"`
	Operational  bool        `serialize:"true"`
	Reserve      uint256.Int `serialize:"true"`
	IndexNonce   uint64      `serialize:"true"`
}

// Snapshot is every persisted record.
type Snapshot struct {
	Meta     Meta
	Accounts []*ledger.Account
	Airlines []*airline.Airline
	Flights  []*flight.Flight
	Policies []*insurance.Policy
	Oracles  []*oracle.Oracle
	Requests []*oracle.Request
}

type State struct {
	db *versiondb.Database

	accountDB database.Database
	airlineDB database.Database
	flightDB  database.Database
	policyDB  database.Database
	oracleDB  database.Database
	requestDB database.Database
	metaDB    database.Database
}

func New(db database.Database) *State {
	vdb := versiondb.New(db)
	return &State{
		db:        vdb,
		accountDB: prefixdb.New(accountPrefix, vdb),
		airlineDB: prefixdb.New(airlinePrefix, vdb),
		flightDB:  prefixdb.New(flightPrefix, vdb),
		policyDB:  prefixdb.New(policyPrefix, vdb),
		oracleDB:  prefixdb.New(oraclePrefix, vdb),
		requestDB: prefixdb.New(requestPrefix, vdb),
		metaDB:    prefixdb.New(metaPrefix, vdb),
	}
}

func (s *State) PutMeta(meta *Meta) error {
	return put(s.metaDB, metaKey, meta)
}

// GetMeta returns the stored meta record. A fresh database returns the zero
// value.
func (s *State) GetMeta() (Meta, error) {
	var meta Meta
	bytes, err := s.metaDB.Get(metaKey)
	if errors.Is(err, database.ErrNotFound) {
		return meta, nil
	}
	if err != nil {
		return meta, err
	}
	if _, err := Codec.Unmarshal(bytes, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse meta: %w", err)
	}
	return meta, nil
}

func (s *State) PutAccount(acct *ledger.Account) error {
	return put(s.accountDB, acct.ID[:], acct)
}

func (s *State) PutAirline(a *airline.Airline) error {
	return put(s.airlineDB, a.ID[:], a)
}

func (s *State) PutFlight(f *flight.Flight) error {
	return put(s.flightDB, f.Key[:], f)
}

func (s *State) PutPolicy(p *insurance.Policy) error {
	return put(s.policyDB, policyKey(p.Flight, p.Passenger), p)
}

func (s *State) PutOracle(o *oracle.Oracle) error {
	return put(s.oracleDB, o.ID[:], o)
}

func (s *State) PutRequest(r *oracle.Request) error {
	return put(s.requestDB, r.Key[:], r)
}

func (s *State) DeleteRequest(key ids.ID) error {
	return s.requestDB.Delete(key[:])
}

// Load reads every committed and pending record.
func (s *State) Load() (*Snapshot, error) {
	meta, err := s.GetMeta()
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Meta: meta}
	if snap.Accounts, err = load[ledger.Account](s.accountDB); err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	if snap.Airlines, err = load[airline.Airline](s.airlineDB); err != nil {
		return nil, fmt.Errorf("failed to load airlines: %w", err)
	}
	if snap.Flights, err = load[flight.Flight](s.flightDB); err != nil {
		return nil, fmt.Errorf("failed to load flights: %w", err)
	}
	if snap.Policies, err = load[insurance.Policy](s.policyDB); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	if snap.Oracles, err = load[oracle.Oracle](s.oracleDB); err != nil {
		return nil, fmt.Errorf("failed to load oracles: %w", err)
	}
	if snap.Requests, err = load[oracle.Request](s.requestDB); err != nil {
		return nil, fmt.Errorf("failed to load requests: %w", err)
	}
	return snap, nil
}

// Commit writes all pending changes to the underlying database.
func (s *State) Commit() error {
	return s.db.Commit()
}

// Abort discards all pending changes.
func (s *State) Abort() {
	s.db.Abort()
}

func (s *State) Close() error {
	return s.db.Close()
}

func put(db database.KeyValueWriter, key []byte, v any) error {
	bytes, err := Codec.Marshal(CodecVersion, v)
	if err != nil {
		return err
	}
	return db.Put(key, bytes)
}

func load[T any](db database.Database) ([]*T, error) {
	iter := db.NewIterator()
	defer iter.Release()

	var records []*T
	for iter.Next() {
		record := new(T)
		if _, err := Codec.Unmarshal(iter.Value(), record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, iter.Error()
}

func policyKey(flightKey ids.ID, passenger ids.ShortID) []byte {
	key := make([]byte, 0, len(flightKey)+len(passenger))
	key = append(key, flightKey[:]...)
	return append(key, passenger[:]...)
}
