// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package flight

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/ids"
	"golang.org/x/crypto/sha3"
)

// Status is a flight status code as reported by oracles.
type Status uint8

const (
	Unknown       Status = 0
	OnTime        Status = 10
	LateAirline   Status = 20
	LateWeather   Status = 30
	LateTechnical Status = 40
	LateOther     Status = 50
)

var statuses = []Status{Unknown, OnTime, LateAirline, LateWeather, LateTechnical, LateOther}

// Statuses returns every terminal status an oracle may report.
func Statuses() []Status {
	return append([]Status(nil), statuses[1:]...)
}

func (s Status) String() string {
	switch s {
	case Unknown:
		return "Unknown"
	case OnTime:
		return "OnTime"
	case LateAirline:
		return "LateAirline"
	case LateWeather:
		return "LateWeather"
	case LateTechnical:
		return "LateTechnical"
	case LateOther:
		return "LateOther"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the defined codes.
func (s Status) Valid() bool {
	for _, status := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Terminal reports whether s is a valid code other than Unknown.
func (s Status) Terminal() bool {
	return s != Unknown && s.Valid()
}

// Flight is one scheduled departure of an airline.
type Flight struct {
	Key       ids.ID      `serialize:"true"`
	Airline   ids.ShortID `serialize:"true"`
	Code      string      `serialize:"true"`
	Departure uint64      `serialize:"true"`
	Status    Status      `serialize:"true"`
	// UpdatedAt is the unix time the status was finalized.
	UpdatedAt uint64 `serialize:"true"`
	Seq       uint64 `serialize:"true"`
}

// KeyOf derives the key of the flight identified by airline, code and
// departure time.
func KeyOf(airline ids.ShortID, code string, departure uint64) ids.ID {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], departure)

	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(airline[:])
	_, _ = h.Write([]byte(code))
	_, _ = h.Write(ts[:])

	var key ids.ID
	copy(key[:], h.Sum(nil))
	return key
}
