// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package units

import "github.com/holiman/uint256"

// Amount is a wei amount that is JSON marshaled in human readable units.
type Amount uint256.Int

func NewAmount(v *uint256.Int) Amount {
	return Amount(*v)
}

// Int returns a copy of the amount.
func (a Amount) Int() *uint256.Int {
	v := uint256.Int(a)
	return &v
}

func (a Amount) String() string {
	return Format(a.Int())
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	str := string(b)
	if str == "null" {
		return nil
	}
	if len(str) >= 2 {
		if lastIndex := len(str) - 1; str[0] == '"' && str[lastIndex] == '"' {
			str = str[1:lastIndex]
		}
	}
	v, err := Parse(str)
	if err != nil {
		return err
	}
	*a = Amount(*v)
	return nil
}
