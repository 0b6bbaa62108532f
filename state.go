// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package surety

// State is the high-level lifecycle state of a VM instance.
type State uint8

const (
	// Unknown is the default / unset state.
	Unknown State = iota

	// Bootstrapping indicates the VM is initialized but has no owner or
	// first airline yet.
	Bootstrapping

	// NormalOp indicates the VM accepts mutating operations.
	NormalOp

	// Paused indicates the owner switched the VM off. Queries are still
	// served.
	Paused

	// Stopped indicates the VM has been shut down.
	Stopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Unknown:
		return "Unknown"
	case Bootstrapping:
		return "Bootstrapping"
	case NormalOp:
		return "NormalOp"
	case Paused:
		return "Paused"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
