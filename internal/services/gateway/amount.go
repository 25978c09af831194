package gateway

import "github.com/shopspring/decimal"

// ToMinorUnits converts an amount to the smallest currency unit, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal, minorUnits int) int64 {
	return amount.Shift(int32(minorUnits)).Round(0).IntPart()
}
