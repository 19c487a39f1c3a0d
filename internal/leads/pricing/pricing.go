package pricing

import (
	"fmt"
	"sort"
)

// Tier is one row of the distance pricing table. MaxDistanceKm <= 0 means the
// tier is unbounded and must be the last one.
type Tier struct {
	MaxDistanceKm float64
	PriceCents    int64
	Name          string
}

// Default mirrors the production pricing table.
func Default() []Tier {
	return []Tier{
		{MaxDistanceKm: 10, PriceCents: 600, Name: "Zona locale"},
		{MaxDistanceKm: 30, PriceCents: 850, Name: "Provincia"},
		{MaxDistanceKm: 100, PriceCents: 1200, Name: "Regione"},
		{MaxDistanceKm: 0, PriceCents: 1500, Name: "Nazionale"},
	}
}

// Validate checks that tiers are sorted ascending, non-overlapping, priced
// positively and terminated by a single unbounded tier, so that exactly one
// tier matches any non-negative distance.
func Validate(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("pricing: empty tier table")
	}
	prev := 0.0
	for i, t := range tiers {
		if t.PriceCents <= 0 {
			return fmt.Errorf("pricing: tier %q has non-positive price", t.Name)
		}
		last := i == len(tiers)-1
		if last {
			if t.MaxDistanceKm > 0 {
				return fmt.Errorf("pricing: last tier %q must be unbounded", t.Name)
			}
			continue
		}
		if t.MaxDistanceKm <= prev {
			return fmt.Errorf("pricing: tier %q bound %v not ascending", t.Name, t.MaxDistanceKm)
		}
		prev = t.MaxDistanceKm
	}
	return nil
}

// TierFor returns the first tier whose bound covers the distance. Negative
// distances are treated as zero.
func TierFor(tiers []Tier, distanceKm float64) Tier {
	if distanceKm < 0 {
		distanceKm = 0
	}
	idx := sort.Search(len(tiers)-1, func(i int) bool {
		return tiers[i].MaxDistanceKm >= distanceKm
	})
	return tiers[idx]
}
