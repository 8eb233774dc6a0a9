package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"GBP": "£",
	"EUR": "€",
	"USD": "$",
}

// MajorUnits converts an amount in minor units into a decimal in major units
func MajorUnits(amountMinor int64) decimal.Decimal {
	return decimal.New(amountMinor, -2)
}

// MinorUnits converts a major-unit decimal into minor units, rounding half away from zero
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FormatMinor renders an amount for display, e.g. "£199.99"
func FormatMinor(amountMinor int64, currency string) string {
	value := MajorUnits(amountMinor).StringFixed(2)
	code := strings.ToUpper(currency)
	if sym, ok := currencySymbols[code]; ok {
		return sym + value
	}
	return value + " " + code
}
