// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/surety/flight"
	"github.com/luxfi/surety/insurance"
)

// RequestState is the lifecycle state of a status request.
type RequestState uint8

const (
	Open RequestState = iota
	// Finalized requests reached quorum and set the flight status.
	Finalized
	// Closed requests were superseded by another request reaching quorum.
	Closed
	// Expired requests stayed open longer than the configured TTL.
	Expired
)

func (s RequestState) String() string {
	switch s {
	case Open:
		return "Open"
	case Finalized:
		return "Finalized"
	case Closed:
		return "Closed"
	case Expired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// Oracle is a registered responder.
type Oracle struct {
	ID      ids.ShortID `serialize:"true"`
	Indexes []uint8     `serialize:"true"`
	// RegisteredAt is unix nanoseconds.
	RegisteredAt int64 `serialize:"true"`
}

// HasIndex reports whether index is one of the oracle's assigned indexes.
func (o *Oracle) HasIndex(index uint8) bool {
	for _, i := range o.Indexes {
		if i == index {
			return true
		}
	}
	return false
}

// Response is one oracle's report for a request.
type Response struct {
	Oracle ids.ShortID   `serialize:"true"`
	Status flight.Status `serialize:"true"`
}

// Request is an inquiry about a flight's status, answerable by oracles
// holding Index.
type Request struct {
	Key       ids.ID      `serialize:"true"`
	Index     uint8       `serialize:"true"`
	Flight    ids.ID      `serialize:"true"`
	Airline   ids.ShortID `serialize:"true"`
	Code      string      `serialize:"true"`
	Departure uint64      `serialize:"true"`
	Requester ids.ShortID `serialize:"true"`
	// OpenedAt is unix nanoseconds.
	OpenedAt  int64      `serialize:"true"`
	Seq       uint64     `serialize:"true"`
	Responses []Response `serialize:"true"`
	// Resolved is set once the request finalized or was closed.
	Resolved bool `serialize:"true"`
	// Status is the finalized status, Unknown unless this request reached
	// quorum.
	Status flight.Status `serialize:"true"`
}

// State returns the request's state at now. A zero ttl never expires.
func (r *Request) State(now time.Time, ttl time.Duration) RequestState {
	switch {
	case r.Resolved && r.Status != flight.Unknown:
		return Finalized
	case r.Resolved:
		return Closed
	case ttl > 0 && !now.Before(time.Unix(0, r.OpenedAt).Add(ttl)):
		return Expired
	default:
		return Open
	}
}

// Count returns how many responses reported status.
func (r *Request) Count(status flight.Status) int {
	n := 0
	for _, resp := range r.Responses {
		if resp.Status == status {
			n++
		}
	}
	return n
}

// Responded reports whether oracle already answered the request.
func (r *Request) Responded(oracle ids.ShortID) bool {
	for _, resp := range r.Responses {
		if resp.Oracle == oracle {
			return true
		}
	}
	return false
}

func (r *Request) less(other *Request) bool {
	return r.Seq < other.Seq
}

func copyRequest(r *Request) Request {
	c := *r
	c.Responses = append([]Response(nil), r.Responses...)
	return c
}

// Outcome is the result of an accepted response.
type Outcome struct {
	Request Request
	// Count is the number of responses matching the submitted status.
	Count     int
	Finalized bool
	// Closed lists other requests for the flight closed by finalization.
	Closed  []ids.ID
	Payouts []insurance.Payout
}
