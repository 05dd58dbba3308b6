package model

type PromoType string

const (
	PromoTypePercent PromoType = "percent" // financial discount applied at charge time
	PromoTypeDays    PromoType = "days"    // redeemed through a separate non-financial path
)

// PromoCode is a single-use-counted discount. UsesLeft only ever decrements,
// never below zero, and a given PaymentIntent may decrement it at most once.
type PromoCode struct {
	ID       string
	Code     string
	Type     PromoType
	Value    int // percent [0,100] or day count
	UsesLeft int
}

func (p *PromoCode) IsZero() bool { return p == nil || p.ID == "" }
