// internal/core/domain/money.go
package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// CurrencyCode is the ISO code of the integer amounts stored by the portal
const CurrencyCode = "NGN"

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Money accumulates integer currency amounts without silent overflow
type Money struct {
	total decimal.Decimal
}

// AddLine adds unitPrice x quantity to the running total
func (m *Money) AddLine(unitPrice int64, quantity int) {
	m.total = m.total.Add(decimal.NewFromInt(unitPrice).Mul(decimal.NewFromInt(int64(quantity))))
}

// Amount returns the total as integer currency units
func (m *Money) Amount() (int64, error) {
	if m.total.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %s", ErrValidation, m.total)
	}
	if m.total.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: amount %s overflows", ErrValidation, m.total)
	}
	return m.total.IntPart(), nil
}

// FormatAmount renders an integer amount with two decimal places, e.g. "450000.00"
func FormatAmount(amount int64) string {
	return decimal.NewFromInt(amount).StringFixed(2)
}
