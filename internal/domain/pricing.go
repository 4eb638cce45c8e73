package domain

// PricingPlan is the externally supplied rate card used to quote an order.
// Amounts are whole currency units.
type PricingPlan struct {
	Name           string
	BaseFare       int64
	PerKm          int64
	PerMinute      int64
	NightSurcharge int64
}

// Valid reports whether the plan carries usable rates. A zero NightSurcharge
// is allowed; negative values are not.
func (p PricingPlan) Valid() bool {
	if p.BaseFare < 0 || p.PerKm < 0 || p.PerMinute < 0 || p.NightSurcharge < 0 {
		return false
	}
	return p.BaseFare > 0 || p.PerKm > 0 || p.PerMinute > 0
}
