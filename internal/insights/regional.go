package insights

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
	"github.com/couchcryptid/climate-data-pipeline/internal/stats"
)

// CountryVolatility describes the spread of one country's temperature
// series.
type CountryVolatility struct {
	Country string
	Range   float64
	Mean    float64
	Min     float64
	Max     float64
	Slope   float64
	Years   int
}

// RankVolatility ranks every country with at least one year by
// max(temp)-min(temp), descending. Ties are ordered by country name so the
// ranking is reproducible.
func RankVolatility(countries domain.CountryTrends) []CountryVolatility {
	out := make([]CountryVolatility, 0, len(countries))
	for _, name := range countries.Countries() {
		series := countries[name]
		if len(series) == 0 {
			continue
		}
		temps := make([]float64, len(series))
		for i, r := range series {
			temps[i] = r.Temp
		}
		lo, hi := stats.Min(temps), stats.Max(temps)
		out = append(out, CountryVolatility{
			Country: name,
			Range:   hi - lo,
			Mean:    stats.Mean(temps),
			Min:     lo,
			Max:     hi,
			Slope:   stats.Slope(temps),
			Years:   len(series),
		})
	}

	slices.SortStableFunc(out, func(a, b CountryVolatility) int {
		return cmp.Or(cmp.Compare(b.Range, a.Range), cmp.Compare(a.Country, b.Country))
	})
	return out
}

func topN(ranking []CountryVolatility, n int) []CountryVolatility {
	if n > len(ranking) {
		n = len(ranking)
	}
	return ranking[:n]
}

// HeatCell is one year of the acceleration matrix.
type HeatCell struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// AccelerationRow is one country's second-difference series, in the
// id/data shape heatmap widgets consume.
type AccelerationRow struct {
	Country string     `json:"id"`
	Data    []HeatCell `json:"data"`
}

// AccelerationMatrix computes, for each selected country, the change of
// the year-over-year temperature change from its third year on. Rows keep
// the order of selected.
func AccelerationMatrix(countries domain.CountryTrends, selected []CountryVolatility) []AccelerationRow {
	out := make([]AccelerationRow, 0, len(selected))
	for _, sel := range selected {
		series := countries[sel.Country]
		temps := make([]float64, len(series))
		for i, r := range series {
			temps[i] = r.Temp
		}

		diffs := stats.SecondDifferences(temps)
		cells := make([]HeatCell, len(diffs))
		for i, d := range diffs {
			cells[i] = HeatCell{X: strconv.Itoa(series[i+2].Year), Y: d}
		}
		out = append(out, AccelerationRow{Country: sel.Country, Data: cells})
	}
	return out
}
