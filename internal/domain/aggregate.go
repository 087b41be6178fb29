package domain

import (
	"maps"
	"slices"
)

// GlobalTrend is the finalized mean of every observation in one year.
type GlobalTrend struct {
	Year     int     `json:"year"`
	Temp     float64 `json:"temp"`
	CO2      float64 `json:"co2"`
	Sea      float64 `json:"sea"`
	Precip   float64 `json:"precip"`
	Humidity float64 `json:"humidity"`
	Wind     float64 `json:"wind"`
}

// CountryTrend is the finalized mean of one country's observations in one
// year. Precipitation, humidity and wind are not tracked per country.
type CountryTrend struct {
	Year int     `json:"year"`
	Temp float64 `json:"temp"`
	CO2  float64 `json:"co2"`
	Sea  float64 `json:"sea"`
}

// GlobalTrends is an ascending-year series of global yearly means.
type GlobalTrends []GlobalTrend

// CountryTrends maps a country name to its ascending-year series.
type CountryTrends map[string][]CountryTrend

// Years returns the year of every record, in series order.
func (g GlobalTrends) Years() []int {
	out := make([]int, len(g))
	for i, r := range g {
		out[i] = r.Year
	}
	return out
}

// Series extracts one metric from every record, in series order.
func (g GlobalTrends) Series(metric func(GlobalTrend) float64) []float64 {
	out := make([]float64, len(g))
	for i, r := range g {
		out[i] = metric(r)
	}
	return out
}

// Countries returns the country names in ascending order.
func (c CountryTrends) Countries() []string {
	return slices.Sorted(maps.Keys(c))
}

// yearSums accumulates running sums for one bucket.
type yearSums struct {
	count    int
	temp     float64
	co2      float64
	sea      float64
	precip   float64
	humidity float64
	wind     float64
}

func (s *yearSums) add(o Observation) {
	s.count++
	s.temp += o.Temperature
	s.co2 += o.CO2Emissions
	s.sea += o.SeaLevelRise
	s.precip += o.Precipitation
	s.humidity += o.Humidity
	s.wind += o.WindSpeed
}

// Aggregate buckets observations by year (globally) and by country and year,
// then finalizes every non-empty bucket into means. Accumulation state lives
// only for the duration of the call.
//
// Floating-point sums depend on addition order, so callers that need
// byte-identical output across input permutations should pass observations
// through SortObservations first.
func Aggregate(obs []Observation) (GlobalTrends, CountryTrends) {
	global := make(map[int]*yearSums)
	regional := make(map[string]map[int]*yearSums)

	for _, o := range obs {
		year := o.Year()

		g, ok := global[year]
		if !ok {
			g = &yearSums{}
			global[year] = g
		}
		g.add(o)

		byYear, ok := regional[o.Country]
		if !ok {
			byYear = make(map[int]*yearSums)
			regional[o.Country] = byYear
		}
		c, ok := byYear[year]
		if !ok {
			c = &yearSums{}
			byYear[year] = c
		}
		c.add(o)
	}

	return finalizeGlobal(global), finalizeCountries(regional)
}

func finalizeGlobal(buckets map[int]*yearSums) GlobalTrends {
	out := make(GlobalTrends, 0, len(buckets))
	for _, year := range slices.Sorted(maps.Keys(buckets)) {
		s := buckets[year]
		if s.count == 0 {
			continue
		}
		n := float64(s.count)
		out = append(out, GlobalTrend{
			Year:     year,
			Temp:     s.temp / n,
			CO2:      s.co2 / n,
			Sea:      s.sea / n,
			Precip:   s.precip / n,
			Humidity: s.humidity / n,
			Wind:     s.wind / n,
		})
	}
	return out
}

func finalizeCountries(regional map[string]map[int]*yearSums) CountryTrends {
	out := make(CountryTrends, len(regional))
	for country, buckets := range regional {
		series := make([]CountryTrend, 0, len(buckets))
		for _, year := range slices.Sorted(maps.Keys(buckets)) {
			s := buckets[year]
			if s.count == 0 {
				continue
			}
			n := float64(s.count)
			series = append(series, CountryTrend{
				Year: year,
				Temp: s.temp / n,
				CO2:  s.co2 / n,
				Sea:  s.sea / n,
			})
		}
		out[country] = series
	}
	return out
}
