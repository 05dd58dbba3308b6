package model

import "fmt"

// Money is an amount in the minor units of its currency (kopecks, cents,
// stars). Integer math only; the major-unit decimal form is rendered on
// demand for providers that quote major units.
type Money struct {
	Amount   int64
	Currency string
}

var currencyExponents = map[string]int{
	"RUB":  2,
	"USD":  2,
	"EUR":  2,
	"UAH":  2,
	"KZT":  2,
	"USDT": 2,
	"XTR":  0, // Telegram Stars have no fractional unit
}

// Exponent returns the number of minor-unit digits for a currency code.
// Unknown codes default to 2.
func Exponent(currency string) int {
	if e, ok := currencyExponents[currency]; ok {
		return e
	}
	return 2
}

// Major renders the amount as a major-unit decimal string, e.g. 10050 RUB
// minor units -> "100.50", 7 XTR -> "7".
func (m Money) Major() string {
	exp := Exponent(m.Currency)
	if exp == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}
	div := int64(1)
	for i := 0; i < exp; i++ {
		div *= 10
	}
	whole := m.Amount / div
	frac := m.Amount % div
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%0*d", whole, exp, frac)
}

func (m Money) IsZero() bool { return m.Amount == 0 && m.Currency == "" }
