/*
Copyright 2026 DebitRelay Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"math/big"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// MinorUnitDecimals is the scale of the minor-unit representation. Amounts
// are native-token denominated, so one whole unit is 10^18 minor units.
const MinorUnitDecimals = 18

// ParseUnits converts a decimal-string amount to its exact minor-unit
// integer value. Amounts with more than 18 fractional digits are rejected
// rather than rounded; balance arithmetic must never drift.
func ParseUnits(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid amount %q", amount)
	}
	shifted := d.Shift(MinorUnitDecimals)
	if !shifted.IsInteger() {
		return nil, errors.Errorf("amount %q has more than %d decimal places", amount, MinorUnitDecimals)
	}
	return shifted.BigInt(), nil
}

// FormatUnits converts a minor-unit integer value back to its decimal-string
// form. Round-trips with ParseUnits exactly.
func FormatUnits(units *big.Int) string {
	return decimal.NewFromBigInt(units, -MinorUnitDecimals).String()
}
