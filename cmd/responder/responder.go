// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package responder simulates a fleet of oracles answering status requests.
package responder

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/surety/api"
	"github.com/luxfi/surety/failure"
	"github.com/luxfi/surety/flight"
)

// Responder registers its oracles with the engine and answers every open
// request at an index one of them holds.
type Responder struct {
	client *api.Client
	log    log.Logger
	config Config

	oracles []ids.ShortID
	indexes map[ids.ShortID][]uint8
	// answers remembers the status reported for each request so all of the
	// fleet's oracles agree
	answers *lru.Cache
}

func New(client *api.Client, logger log.Logger, config Config) (*Responder, error) {
	answers, err := lru.New(config.CacheSize)
	if err != nil {
		return nil, err
	}
	oracles := make([]ids.ShortID, config.Oracles)
	for i := range oracles {
		oracles[i] = OracleID(config.Seed, i)
	}
	return &Responder{
		client:  client,
		log:     logger,
		config:  config,
		oracles: oracles,
		indexes: make(map[ids.ShortID][]uint8, len(oracles)),
		answers: answers,
	}, nil
}

// OracleID derives the identity of the i'th oracle of a fleet.
func OracleID(seed string, i int) ids.ShortID {
	digest := sha3.Sum256([]byte(seed + "/" + strconv.Itoa(i)))

	var id ids.ShortID
	copy(id[:], digest[:])
	return id
}

// Register registers every oracle that is not yet known to the engine and
// loads its indexes.
func (r *Responder) Register(ctx context.Context) error {
	fee, err := r.client.GetRegistrationFee(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch registration fee: %w", err)
	}
	for _, id := range r.oracles {
		indexes, err := r.client.RegisterOracle(ctx, id, fee)
		if kindOf(err) == failure.AlreadyRegistered {
			indexes, err = r.client.GetMyIndexes(ctx, id)
		}
		if err != nil {
			return fmt.Errorf("failed to register oracle %s: %w", id, err)
		}
		r.indexes[id] = indexes
		r.log.Debug("oracle ready",
			log.Stringer("oracle", id),
			log.Reflect("indexes", indexes),
		)
	}
	r.log.Info("registered oracles",
		log.Int("count", len(r.oracles)),
	)
	return nil
}

// Respond answers every open request once and returns the number of
// accepted responses.
func (r *Responder) Respond(ctx context.Context) (int, error) {
	requests, err := r.client.ListOpenRequests(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list open requests: %w", err)
	}

	var accepted atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.config.Concurrency)
	for _, req := range requests {
		airline, err := ids.ShortFromString(req.Airline)
		if err != nil {
			r.log.Warn("skipping request",
				log.String("request", req.Key),
				log.Err(err),
			)
			continue
		}
		status := r.answer(req.Key)
		for _, id := range r.holders(uint8(req.Index)) {
			eg.Go(func() error {
				_, err := r.client.SubmitResponse(
					ctx,
					id,
					uint8(req.Index),
					airline,
					req.Code,
					uint64(req.Departure),
					status,
				)
				switch kindOf(err) {
				case "":
					accepted.Add(1)
					return nil
				case failure.DuplicateVote, failure.RequestClosed, failure.NoSuchRequest, failure.FlightFinalized:
					// already answered or resolved by another response
					return nil
				default:
					return fmt.Errorf("oracle %s failed to respond to %s: %w", id, req.Key, err)
				}
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return int(accepted.Load()), err
	}
	return int(accepted.Load()), nil
}

// Run responds every interval until ctx is cancelled.
func (r *Responder) Run(ctx context.Context) error {
	if err := r.Register(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		accepted, err := r.Respond(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warn("failed to respond",
				log.Err(err),
			)
			continue
		}
		if accepted > 0 {
			r.log.Info("submitted responses",
				log.Int("accepted", accepted),
			)
		}
	}
}

func (r *Responder) holders(index uint8) []ids.ShortID {
	var holders []ids.ShortID
	for _, id := range r.oracles {
		for _, held := range r.indexes[id] {
			if held == index {
				holders = append(holders, id)
				break
			}
		}
	}
	return holders
}

func (r *Responder) answer(requestKey string) flight.Status {
	if r.config.Status != RandomStatus {
		return flight.Status(r.config.Status)
	}
	if status, ok := r.answers.Get(requestKey); ok {
		return status.(flight.Status)
	}

	var terminal []flight.Status
	for _, status := range flight.Statuses() {
		if status.Terminal() {
			terminal = append(terminal, status)
		}
	}
	status := terminal[rand.IntN(len(terminal))]
	r.answers.Add(requestKey, status)
	return status
}

// kindOf returns the failure kind reported by the engine, or the empty kind
// when err is nil.
func kindOf(err error) failure.Kind {
	if err == nil {
		return ""
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return failure.Internal
}
