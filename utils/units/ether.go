// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package units

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Denominations of value, in wei.
const (
	Wei    uint64 = 1
	KWei   uint64 = 1000 * Wei
	MWei   uint64 = 1000 * KWei
	GWei   uint64 = 1000 * MWei
	Szabo  uint64 = 1000 * GWei
	Finney uint64 = 1000 * Szabo
	Ether  uint64 = 1000 * Finney
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrPrecision     = errors.New("amount is finer than one wei")

	suffixes = []struct {
		name     string
		decimals int
	}{
		// longest first so "gwei" is not read as "wei"
		{"finney", 15},
		{"ether", 18},
		{"szabo", 12},
		{"gwei", 9},
		{"mwei", 6},
		{"kwei", 3},
		{"wei", 0},
		{"eth", 18},
	}

	gwei  = uint256.NewInt(GWei)
	ether = uint256.NewInt(Ether)
)

// Ethers returns n ether in wei.
func Ethers(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), ether)
}

// Gwei returns n gwei in wei.
func Gwei(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), gwei)
}

// Parse reads an amount such as "10ether", "0.5 ether", "1500gwei" or
// "42" (wei).
func Parse(s string) (*uint256.Int, error) {
	str := strings.ToLower(strings.TrimSpace(s))
	decimals := 0
	for _, suffix := range suffixes {
		if strings.HasSuffix(str, suffix.name) {
			str = strings.TrimSpace(strings.TrimSuffix(str, suffix.name))
			decimals = suffix.decimals
			break
		}
	}
	str = strings.ReplaceAll(str, "_", "")
	if str == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	whole, frac, _ := strings.Cut(str, ".")
	if !isDigits(whole) || !isDigits(frac) || whole+frac == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	frac = strings.TrimRight(frac, "0")
	if len(frac) > decimals {
		return nil, fmt.Errorf("%w: %q", ErrPrecision, s)
	}

	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", decimals-len(frac)), "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, err)
	}
	return v, nil
}

// Format renders v in the largest of ether, gwei or wei that represents it
// exactly.
func Format(v *uint256.Int) string {
	switch {
	case v.IsZero():
		return "0"
	case new(uint256.Int).Mod(v, ether).IsZero():
		return new(uint256.Int).Div(v, ether).Dec() + "ether"
	case new(uint256.Int).Mod(v, gwei).IsZero():
		return new(uint256.Int).Div(v, gwei).Dec() + "gwei"
	default:
		return v.Dec()
	}
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
