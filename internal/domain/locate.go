package domain

import (
	"context"
	"log/slog"
)

// Location outcomes reported by LocateCountries.
const (
	LocateFound  = "found"
	LocateEmpty  = "empty"
	LocateFailed = "failed"
)

// CountryLocation is a representative point for a country, used by map
// consumers that cannot join on the country name alone.
type CountryLocation struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	PlaceName  string  `json:"place_name,omitempty"`
	Confidence float64 `json:"confidence,omitempty"` // 0.0–1.0 provider relevance score
}

// CountryLocator resolves a country name to a location.
type CountryLocator interface {
	LocateCountry(ctx context.Context, name string) (CountryLocation, error)
}

// LocateCountries resolves every country in order. A failed or empty lookup
// is logged and left out of the result (graceful degradation); only context
// cancellation aborts the loop. The returned outcomes map counts
// LocateFound, LocateEmpty and LocateFailed.
func LocateCountries(ctx context.Context, countries []string, locator CountryLocator, logger *slog.Logger) (map[string]CountryLocation, map[string]int, error) {
	found := make(map[string]CountryLocation, len(countries))
	outcomes := map[string]int{}

	for _, name := range countries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		loc, err := locator.LocateCountry(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			logger.Warn("country lookup failed", "country", name, "error", err)
			outcomes[LocateFailed]++
			continue
		}
		if loc.Lat == 0 && loc.Lon == 0 {
			logger.Debug("country lookup returned no result", "country", name)
			outcomes[LocateEmpty]++
			continue
		}
		found[name] = loc
		outcomes[LocateFound]++
	}
	return found, outcomes, nil
}
