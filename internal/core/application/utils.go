package application

import "github.com/shopspring/decimal"

func decimalToNull(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
