package parser

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/gridfeed/core/logger"
	"github.com/kilianp07/gridfeed/core/model"
)

// DefaultNegativeTolerance is the absolute clamp threshold for small negative
// fuel readings, in MW.
const DefaultNegativeTolerance = 50.0

// TotalMismatchTolerance is the relative tolerance between a reported
// breakdown sum and a reported total.
const TotalMismatchTolerance = 0.02

// StaleWarnAge is the fetched-data age past which parsers log a warning. The
// scheduler, not the parser, decides whether to suppress stale data.
const StaleWarnAge = 2 * time.Hour

// ClampSmallNegatives applies the shared negative-reading policy to a mix in
// place: readings in (-tolerance, 0) are measurement noise and clamp to zero
// with a warning; anything at or below -tolerance fails the datapoint. A
// tolerance of zero selects DefaultNegativeTolerance.
func ClampSmallNegatives(zone model.ZoneKey, mix model.Mix, tolerance float64, log logger.Logger) error {
	if tolerance <= 0 {
		tolerance = DefaultNegativeTolerance
	}
	for mode, v := range mix {
		if v == nil || *v >= 0 {
			continue
		}
		if -*v >= tolerance {
			return fmt.Errorf("zone %s: %s reads %.1f MW, below the -%.0f MW tolerance", zone, mode, *v, tolerance)
		}
		log.Warnw("clamping small negative production to zero", map[string]any{
			"zone": string(zone), "mode": string(mode), "value": *v,
		})
		mix[mode] = model.F(0)
	}
	return nil
}

// CheckReportedTotal compares the non-nil breakdown sum against a total the
// source reported alongside it. The datapoint is acceptable when the sum is
// within ±2% of the total.
func CheckReportedTotal(zone model.ZoneKey, mix model.Mix, total float64) error {
	if total <= 0 {
		return fmt.Errorf("zone %s: reported total %.1f MW is not positive", zone, total)
	}
	var sum float64
	for _, v := range mix {
		if v != nil {
			sum += *v
		}
	}
	if math.Abs(sum-total)/total > TotalMismatchTolerance {
		return fmt.Errorf("zone %s: breakdown sum %.1f MW deviates more than %.0f%% from reported total %.1f MW",
			zone, sum, TotalMismatchTolerance*100, total)
	}
	return nil
}

// WarnIfStale logs when the fetched observation lags wall-clock by more than
// StaleWarnAge.
func WarnIfStale(zone model.ZoneKey, at, now time.Time, log logger.Logger) {
	if age := now.Sub(at); age > StaleWarnAge {
		log.Warnw("fetched data is stale", map[string]any{
			"zone": string(zone), "datetime": at.Format(time.RFC3339), "age": age.String(),
		})
	}
}
