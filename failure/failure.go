// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package failure classifies rejected engine operations.
//
// Every validation failure the engine can return carries exactly one Kind.
// Packages declare their sentinel errors with New and callers inspect them
// with errors.Is or KindOf.
package failure

import "errors"

// Kind names a class of rejected operation.
type Kind string

const (
	// Internal is reported for errors that do not carry a Kind, such as
	// storage failures.
	Internal Kind = "Internal"

	NotOperational      Kind = "NotOperational"
	Unauthorized        Kind = "Unauthorized"
	NotFunded           Kind = "NotFunded"
	AirlineNotFunded    Kind = "AirlineNotFunded"
	AlreadyRegistered   Kind = "AlreadyRegistered"
	DuplicateVote       Kind = "DuplicateVote"
	DuplicateFlight     Kind = "DuplicateFlight"
	UnknownFlight       Kind = "UnknownFlight"
	DuplicatePolicy     Kind = "DuplicatePolicy"
	WrongFee            Kind = "WrongFee"
	NotRegistered       Kind = "NotRegistered"
	IndexMismatch       Kind = "IndexMismatch"
	NoSuchRequest       Kind = "NoSuchRequest"
	RequestClosed       Kind = "RequestClosed"
	InsufficientBalance Kind = "InsufficientBalance"
	InvalidAmount       Kind = "InvalidAmount"

	NotBootstrapped     Kind = "NotBootstrapped"
	AlreadyBootstrapped Kind = "AlreadyBootstrapped"
	FlightFinalized     Kind = "FlightFinalized"
	InvalidStatus       Kind = "InvalidStatus"
	InvalidArgument     Kind = "InvalidArgument"
)

var kinds = []Kind{
	NotOperational,
	Unauthorized,
	NotFunded,
	AirlineNotFunded,
	AlreadyRegistered,
	DuplicateVote,
	DuplicateFlight,
	UnknownFlight,
	DuplicatePolicy,
	WrongFee,
	NotRegistered,
	IndexMismatch,
	NoSuchRequest,
	RequestClosed,
	InsufficientBalance,
	InvalidAmount,
	NotBootstrapped,
	AlreadyBootstrapped,
	FlightFinalized,
	InvalidStatus,
	InvalidArgument,
}

// Kinds returns every validation kind, excluding Internal.
func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

// Parse returns the Kind named by s. Unknown names map to Internal.
func Parse(s string) Kind {
	for _, k := range kinds {
		if string(k) == s {
			return k
		}
	}
	return Internal
}

func (k Kind) String() string {
	return string(k)
}

// Error is a sentinel error tagged with a Kind.
type Error struct {
	Kind Kind
	msg  string
}

// New returns a sentinel error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

// KindOf returns the Kind of the first tagged error in err's chain, or
// Internal if there is none.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
