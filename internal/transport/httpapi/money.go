package httpapi

import (
	"github.com/shopspring/decimal"
)

// Money сериализуется JSON-числом ровно с двумя знаками после запятой (30.00, а не "30").
type Money decimal.Decimal

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(m).StringFixed(2)), nil
}

// UnmarshalJSON принимает и число, и строку.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = Money(d)
	return nil
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.Decimal(m)
}
