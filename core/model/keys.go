package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ZoneKey identifies a bidding or control area of the grid. The first part is
// an ISO-3166 alpha-2 country code, optionally followed by up to two
// dash-separated subdivision parts.
type ZoneKey string

var zoneKeyRe = regexp.MustCompile(`^[A-Z]{2}(-[A-Z0-9]+){0,2}$`)

// Validate checks the syntactic form of the key. Membership in the configured
// zone set is checked where the configuration is available.
func (z ZoneKey) Validate() error {
	if !zoneKeyRe.MatchString(string(z)) {
		return fmt.Errorf("invalid zone key %q", string(z))
	}
	return nil
}

func (z ZoneKey) String() string { return string(z) }

// ExchangeKey identifies a directional flow between two adjacent zones. The
// canonical form joins the two endpoint keys, sorted lexicographically, with
// "->".
type ExchangeKey string

// NewExchangeKey builds the canonical key for the pair (a, b). The returned
// flag reports whether the endpoints were swapped to reach canonical order,
// in which case the caller must flip the sign of any flow it reports.
func NewExchangeKey(a, b ZoneKey) (ExchangeKey, bool, error) {
	if err := a.Validate(); err != nil {
		return "", false, err
	}
	if err := b.Validate(); err != nil {
		return "", false, err
	}
	if a == b {
		return "", false, fmt.Errorf("exchange endpoints must differ, got %q twice", a)
	}
	if a < b {
		return ExchangeKey(string(a) + "->" + string(b)), false, nil
	}
	return ExchangeKey(string(b) + "->" + string(a)), true, nil
}

// Validate checks that the key is well formed and canonically sorted.
func (k ExchangeKey) Validate() error {
	parts := strings.Split(string(k), "->")
	if len(parts) != 2 {
		return fmt.Errorf("invalid exchange key %q", string(k))
	}
	a, b := ZoneKey(parts[0]), ZoneKey(parts[1])
	canonical, _, err := NewExchangeKey(a, b)
	if err != nil {
		return fmt.Errorf("invalid exchange key %q: %w", string(k), err)
	}
	if canonical != k {
		return fmt.Errorf("exchange key %q is not canonically sorted", string(k))
	}
	return nil
}

// Zones returns the two endpoint keys in canonical order.
func (k ExchangeKey) Zones() (ZoneKey, ZoneKey) {
	parts := strings.SplitN(string(k), "->", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return ZoneKey(parts[0]), ZoneKey(parts[1])
}

func (k ExchangeKey) String() string { return string(k) }
