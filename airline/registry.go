// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package airline implements airline admission. The first airlines are
// admitted on the word of any funded airline; once the registry holds
// enough airlines, admission requires votes from half of the funded ones.
package airline

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/surety/failure"
)

var (
	ErrNotFunded         = failure.New(failure.NotFunded, "requesting airline is not funded")
	ErrAlreadyRegistered = failure.New(failure.AlreadyRegistered, "airline is already registered")
	ErrDuplicateVote     = failure.New(failure.DuplicateVote, "airline already voted for this candidate")
	ErrNotRegistered     = failure.New(failure.NotRegistered, "airline is not registered")
	ErrUnderfunded       = failure.New(failure.NotFunded, "airline funding is below the minimum")
)

// Funds reports the cumulative amount a participant has funded.
type Funds interface {
	Funds(ids.ShortID) *uint256.Int
}

// Registry is not safe for concurrent use.
type Registry struct {
	threshold  int
	minFunding uint256.Int
	funds      Funds

	airlines map[ids.ShortID]*Airline
	voters   map[ids.ShortID]set.Set[ids.ShortID]
	admitted int
	funded   int
	seq      uint64

	dirty set.Set[ids.ShortID]
}

// NewRegistry returns an empty registry. Up to threshold airlines are
// admitted without a vote, and an airline becomes Funded once funds reports
// at least minFunding for it.
func NewRegistry(threshold int, minFunding *uint256.Int, funds Funds) *Registry {
	return &Registry{
		threshold:  threshold,
		minFunding: *minFunding,
		funds:      funds,
		airlines:   make(map[ids.ShortID]*Airline),
		voters:     make(map[ids.ShortID]set.Set[ids.ShortID]),
		dirty:      set.NewSet[ids.ShortID](0),
	}
}

// Restore loads persisted airlines into an empty registry.
func (r *Registry) Restore(airlines []*Airline) {
	for _, a := range airlines {
		airline := *a
		airline.Voters = append([]ids.ShortID(nil), a.Voters...)
		r.airlines[airline.ID] = &airline

		voters := set.NewSet[ids.ShortID](len(airline.Voters))
		voters.Add(airline.Voters...)
		r.voters[airline.ID] = voters

		if airline.Status.Admitted() {
			r.admitted++
		}
		if airline.Status == Funded {
			r.funded++
		}
		r.seq = max(r.seq, airline.Seq)
	}
}

// Seed admits the bootstrap airline as Funded. Its funding must already be
// recorded.
func (r *Registry) Seed(id ids.ShortID, name string) error {
	if a, ok := r.airlines[id]; ok && a.Status.Admitted() {
		return ErrAlreadyRegistered
	}
	if r.funds.Funds(id).Lt(&r.minFunding) {
		return ErrUnderfunded
	}
	a := r.newAirline(id, name)
	a.Status = Funded
	r.admitted++
	r.funded++
	r.touch(a)
	return nil
}

// Register admits candidate on behalf of requester, or records requester's
// vote for it once the registry has reached its unvoted admission limit.
func (r *Registry) Register(candidate, requester ids.ShortID, name string) (Admission, error) {
	if !r.IsFunded(requester) {
		return Admission{}, fmt.Errorf("%w: %s", ErrNotFunded, requester)
	}
	existing, known := r.airlines[candidate]
	if known && existing.Status.Admitted() {
		return Admission{}, fmt.Errorf("%w: %s", ErrAlreadyRegistered, candidate)
	}

	if r.admitted < r.threshold {
		a := existing
		if !known {
			a = r.newAirline(candidate, name)
		}
		r.admit(a, name)
		return Admission{Airline: candidate, Admitted: true}, nil
	}

	voters := r.voters[candidate]
	if voters.Contains(requester) {
		return Admission{}, fmt.Errorf("%w: %s for %s", ErrDuplicateVote, requester, candidate)
	}

	a := existing
	if !known {
		a = r.newAirline(candidate, name)
		voters = set.NewSet[ids.ShortID](1)
		r.voters[candidate] = voters
	}
	voters.Add(requester)
	a.Voters = append(a.Voters, requester)

	adm := Admission{
		Airline:  candidate,
		Votes:    voters.Len(),
		Required: (r.funded + 1) / 2,
	}
	if adm.Votes >= adm.Required {
		r.admit(a, name)
		adm.Admitted = true
	} else {
		r.touch(a)
	}
	return adm, nil
}

// CheckFundable returns an error unless id may receive funding.
func (r *Registry) CheckFundable(id ids.ShortID) error {
	if !r.IsRegistered(id) {
		return fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	return nil
}

// Promote marks a Registered airline Funded if its recorded funding has
// reached the minimum. It reports whether the status changed.
func (r *Registry) Promote(id ids.ShortID) bool {
	a, ok := r.airlines[id]
	if !ok || a.Status != Registered {
		return false
	}
	if r.funds.Funds(id).Lt(&r.minFunding) {
		return false
	}
	a.Status = Funded
	r.funded++
	r.touch(a)
	return true
}

// IsRegistered reports whether id is Registered or Funded.
func (r *Registry) IsRegistered(id ids.ShortID) bool {
	a, ok := r.airlines[id]
	return ok && a.Status.Admitted()
}

func (r *Registry) IsFunded(id ids.ShortID) bool {
	a, ok := r.airlines[id]
	return ok && a.Status == Funded
}

// Votes returns the number of votes cast for id.
func (r *Registry) Votes(id ids.ShortID) int {
	return r.voters[id].Len()
}

// Get returns a copy of the airline record.
func (r *Registry) Get(id ids.ShortID) (Airline, bool) {
	a, ok := r.airlines[id]
	if !ok {
		return Airline{ID: id}, false
	}
	return copyAirline(a), true
}

// Counts returns the number of admitted and funded airlines.
func (r *Registry) Counts() (admitted int, funded int) {
	return r.admitted, r.funded
}

// List returns every airline record, including unadmitted candidates, in
// order of first appearance.
func (r *Registry) List() []Airline {
	airlines := make([]Airline, 0, len(r.airlines))
	for _, a := range r.airlines {
		airlines = append(airlines, copyAirline(a))
	}
	sort.Slice(airlines, func(i, j int) bool {
		return airlines[i].Seq < airlines[j].Seq
	})
	return airlines
}

// Changes returns copies of the airlines modified since ClearChanges.
func (r *Registry) Changes() []Airline {
	airlines := make([]Airline, 0, r.dirty.Len())
	for id := range r.dirty {
		airlines = append(airlines, copyAirline(r.airlines[id]))
	}
	return airlines
}

func (r *Registry) Dirty() bool {
	return r.dirty.Len() > 0
}

func (r *Registry) ClearChanges() {
	r.dirty = set.NewSet[ids.ShortID](0)
}

func (r *Registry) newAirline(id ids.ShortID, name string) *Airline {
	r.seq++
	a := &Airline{
		ID:   id,
		Name: name,
		Seq:  r.seq,
	}
	r.airlines[id] = a
	return a
}

func (r *Registry) admit(a *Airline, name string) {
	if a.Name == "" {
		a.Name = name
	}
	a.Status = Registered
	r.admitted++
	r.touch(a)
	// funding may have arrived before admission
	r.Promote(a.ID)
}

func (r *Registry) touch(a *Airline) {
	r.dirty.Add(a.ID)
}

func copyAirline(a *Airline) Airline {
	c := *a
	c.Voters = append([]ids.ShortID(nil), a.Voters...)
	return c
}
