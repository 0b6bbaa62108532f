// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package oracle

import (
	"encoding/binary"

	"github.com/luxfi/ids"
	"golang.org/x/crypto/sha3"
)

// IndexSource draws an index in [0, space) for account. The nonce advances
// after every committed draw, so a source may be a pure function of its
// inputs.
type IndexSource interface {
	Index(account ids.ShortID, nonce uint64, space int) uint8
}

// IndexFunc adapts a function to an IndexSource.
type IndexFunc func(account ids.ShortID, nonce uint64, space int) uint8

func (f IndexFunc) Index(account ids.ShortID, nonce uint64, space int) uint8 {
	return f(account, nonce, space)
}

// KeccakSource hashes a seed, the nonce and the account.
type KeccakSource struct {
	seed []byte
}

func NewKeccakSource(seed []byte) *KeccakSource {
	return &KeccakSource{seed: append([]byte(nil), seed...)}
}

func (s *KeccakSource) Index(account ids.ShortID, nonce uint64, space int) uint8 {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)

	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(s.seed)
	_, _ = h.Write(n[:])
	_, _ = h.Write(account[:])
	digest := h.Sum(nil)

	v := binary.BigEndian.Uint64(digest[len(digest)-8:])
	return uint8(v % uint64(space))
}

// RequestKey derives the key of the status request opened at index for
// flightKey.
func RequestKey(index uint8, flightKey ids.ID) ids.ID {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte{index})
	_, _ = h.Write(flightKey[:])

	var key ids.ID
	copy(key[:], h.Sum(nil))
	return key
}
