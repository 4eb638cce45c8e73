package service

import (
	"math"
	"time"

	"dispatch/internal/config"
	"dispatch/internal/domain"
)

// FareEngine computes ride prices from a pricing plan and a distance/time
// estimate. Pure computation, no state beyond policy configuration.
type FareEngine struct {
	cfg            config.FareConfig
	commissionRate float64
}

// NewFareEngine creates a new FareEngine.
func NewFareEngine(fareCfg config.FareConfig, dispatchCfg config.DispatchConfig) *FareEngine {
	return &FareEngine{
		cfg:            fareCfg,
		commissionRate: dispatchCfg.CommissionRate,
	}
}

// Quote computes the price for a trip. The night surcharge is a flat add-on
// applied when the caller flags the trip as starting inside the night window.
func (e *FareEngine) Quote(distanceKm, durationMin float64, plan domain.PricingPlan, night bool) (int64, error) {
	if !plan.Valid() || distanceKm < 0 || durationMin < 0 {
		return 0, ErrInvalidPlan
	}

	total := float64(plan.BaseFare) +
		distanceKm*float64(plan.PerKm) +
		durationMin*float64(plan.PerMinute)
	if night {
		total += float64(plan.NightSurcharge)
	}

	return int64(math.Round(total)), nil
}

// IsNight reports whether t falls inside the configured night window. The
// window may wrap midnight (e.g. 23 to 6).
func (e *FareEngine) IsNight(t time.Time) bool {
	h := t.Hour()
	start, end := e.cfg.NightStartHour, e.cfg.NightEndHour
	if start == end {
		return false
	}
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

// WaitingFee computes the accrued waiting fee for a wait of the given
// duration. Always recomputed from the elapsed wall-clock time, never
// accumulated incrementally, so repeated reads cannot drift. Monotonic in
// elapsed.
func (e *FareEngine) WaitingFee(elapsed time.Duration) int64 {
	past := elapsed - e.cfg.WaitingGrace
	if past <= 0 {
		return 0
	}
	return int64(past/time.Minute) * e.cfg.WaitingPerMinute
}

// Commission computes the platform fee for a final price.
func (e *FareEngine) Commission(price int64) int64 {
	return int64(math.Round(float64(price) * e.commissionRate))
}
