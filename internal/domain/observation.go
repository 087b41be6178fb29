package domain

import (
	"cmp"
	"slices"
	"time"
)

// Dataset column names as they appear in the CSV header.
const (
	ColumnDate          = "Date"
	ColumnCountry       = "Country"
	ColumnLocation      = "Location"
	ColumnTemperature   = "Temperature"
	ColumnCO2Emissions  = "CO2 Emissions"
	ColumnSeaLevelRise  = "Sea Level Rise"
	ColumnPrecipitation = "Precipitation"
	ColumnHumidity      = "Humidity"
	ColumnWindSpeed     = "Wind Speed"
)

// RequiredColumns lists the header names every dataset file must declare.
var RequiredColumns = []string{
	ColumnDate,
	ColumnCountry,
	ColumnTemperature,
	ColumnCO2Emissions,
	ColumnSeaLevelRise,
	ColumnPrecipitation,
	ColumnHumidity,
	ColumnWindSpeed,
}

// Observation is one normalized dataset row. JSON keys keep the dataset
// header names so raw_data.json stays compatible with existing consumers.
type Observation struct {
	Date          time.Time `json:"Date"`
	Country       string    `json:"Country"`
	Temperature   float64   `json:"Temperature"`
	CO2Emissions  float64   `json:"CO2 Emissions"`
	SeaLevelRise  float64   `json:"Sea Level Rise"`
	Precipitation float64   `json:"Precipitation"`
	Humidity      float64   `json:"Humidity"`
	WindSpeed     float64   `json:"Wind Speed"`
}

// Year returns the UTC calendar year of the observation.
func (o Observation) Year() int {
	return o.Date.UTC().Year()
}

// SortObservations orders observations ascending by date. Ties are broken by
// country and then by every metric, so any permutation of the same multiset
// sorts to the same sequence.
func SortObservations(obs []Observation) {
	slices.SortStableFunc(obs, compareObservations)
}

func compareObservations(a, b Observation) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return cmp.Or(
		cmp.Compare(a.Country, b.Country),
		cmp.Compare(a.Temperature, b.Temperature),
		cmp.Compare(a.CO2Emissions, b.CO2Emissions),
		cmp.Compare(a.SeaLevelRise, b.SeaLevelRise),
		cmp.Compare(a.Precipitation, b.Precipitation),
		cmp.Compare(a.Humidity, b.Humidity),
		cmp.Compare(a.WindSpeed, b.WindSpeed),
	)
}
