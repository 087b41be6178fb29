// Package insights derives the statistical experiments of the climate
// report from the yearly trend series.
package insights

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
	"github.com/couchcryptid/climate-data-pipeline/internal/stats"
)

// ErrNoTrends is returned when the global series has no years to analyze.
var ErrNoTrends = errors.New("global trend series is empty")

// Precipitation volatility directions.
const (
	Increased = "Increased"
	Decreased = "Decreased"
	Unchanged = "Unchanged"
)

// previewRows is the number of yearly rows echoed in the report.
const previewRows = 5

// Config holds the policy constants of the analysis.
type Config struct {
	// SplitYear is the last year of the first decadal bucket.
	SplitYear int
	// BaselineStart and BaselineEnd bound the anomaly baseline, inclusive.
	BaselineStart int
	BaselineEnd   int
	// VolatilityTopN truncates the regional ranking table.
	VolatilityTopN int
	// HeatmapTopN selects the countries of the acceleration matrix.
	HeatmapTopN int
}

// DefaultConfig returns the policy constants of the published report.
func DefaultConfig() Config {
	return Config{
		SplitYear:      2010,
		BaselineStart:  2000,
		BaselineEnd:    2010,
		VolatilityTopN: 5,
		HeatmapTopN:    10,
	}
}

// Report bundles every experiment. It is rendered once and never re-read.
type Report struct {
	GeneratedAt time.Time
	FirstYear   int
	LastYear    int
	Years       int
	Countries   int

	Decadal      DecadalContrast
	Acceleration Acceleration
	Sensitivity  Sensitivity
	Outliers     []OutlierSet
	Volatility   []CountryVolatility
	Correlations []Correlation
	Snapshot     []Summary
	Anomaly      Anomaly
	Matrix       []AccelerationRow
	Preview      domain.GlobalTrends
}

// Analyzer runs the experiments with a fixed configuration.
type Analyzer struct {
	cfg   Config
	clock clockwork.Clock
}

// New creates an Analyzer. A nil clock uses real time.
func New(cfg Config, clock clockwork.Clock) *Analyzer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Analyzer{cfg: cfg, clock: clock}
}

// Analyze computes the full report. Country trends may be empty; the
// regional sections are then empty too.
func (a *Analyzer) Analyze(global domain.GlobalTrends, countries domain.CountryTrends) (*Report, error) {
	if len(global) == 0 {
		return nil, ErrNoTrends
	}
	if a.cfg.VolatilityTopN < 0 || a.cfg.HeatmapTopN < 0 {
		return nil, fmt.Errorf("negative top-N: volatility=%d heatmap=%d", a.cfg.VolatilityTopN, a.cfg.HeatmapTopN)
	}

	ranking := RankVolatility(countries)

	rep := &Report{
		GeneratedAt:  a.clock.Now().UTC(),
		FirstYear:    global[0].Year,
		LastYear:     global[len(global)-1].Year,
		Years:        len(global),
		Countries:    len(countries),
		Decadal:      ContrastDecades(global, a.cfg.SplitYear),
		Acceleration: Accelerate(global),
		Sensitivity:  Sensitize(global),
		Outliers:     DetectOutliers(global),
		Volatility:   topN(ranking, a.cfg.VolatilityTopN),
		Correlations: Correlate(global),
		Snapshot:     Summarize(global),
		Anomaly:      Anomalies(global, a.cfg.BaselineStart, a.cfg.BaselineEnd),
		Matrix:       AccelerationMatrix(countries, topN(ranking, a.cfg.HeatmapTopN)),
		Preview:      global[:min(previewRows, len(global))],
	}
	return rep, nil
}

func temp(r domain.GlobalTrend) float64     { return r.Temp }
func co2(r domain.GlobalTrend) float64      { return r.CO2 }
func sea(r domain.GlobalTrend) float64      { return r.Sea }
func precip(r domain.GlobalTrend) float64   { return r.Precip }
func humidity(r domain.GlobalTrend) float64 { return r.Humidity }
func wind(r domain.GlobalTrend) float64     { return r.Wind }

// MetricContrast compares one metric's mean across the two decadal buckets.
type MetricContrast struct {
	Name   string
	Unit   string
	First  float64
	Second float64
	Delta  float64
	// Shift is the percentage change relative to First.
	Shift stats.Ratio
}

// VolatilityContrast compares the population std-dev across the buckets.
type VolatilityContrast struct {
	First     float64
	Second    float64
	Direction string
}

// DecadalContrast is the two-bucket comparison split at SplitYear.
type DecadalContrast struct {
	SplitYear        int
	FirstLabel       string
	SecondLabel      string
	FirstYears       int
	SecondYears      int
	Metrics          []MetricContrast
	PrecipVolatility VolatilityContrast
}

// ContrastDecades partitions the series into year <= split and
// year > split and compares their means. The shift is undefined when a
// bucket is empty or the first mean is zero.
func ContrastDecades(global domain.GlobalTrends, split int) DecadalContrast {
	var first, second domain.GlobalTrends
	for _, r := range global {
		if r.Year <= split {
			first = append(first, r)
		} else {
			second = append(second, r)
		}
	}

	dc := DecadalContrast{
		SplitYear:   split,
		FirstLabel:  yearSpan(first),
		SecondLabel: yearSpan(second),
		FirstYears:  len(first),
		SecondYears: len(second),
	}

	metrics := []struct {
		name, unit string
		pick       func(domain.GlobalTrend) float64
	}{
		{"Temperature", "°C", temp},
		{"CO2 Levels", "ppm", co2},
		{"Sea Level", "mm", sea},
	}
	for _, m := range metrics {
		d1 := stats.Mean(first.Series(m.pick))
		d2 := stats.Mean(second.Series(m.pick))
		mc := MetricContrast{Name: m.name, Unit: m.unit, First: d1, Second: d2, Delta: d2 - d1}
		if len(first) > 0 && len(second) > 0 {
			mc.Shift = stats.Divide((d2-d1)*100, d1)
		}
		dc.Metrics = append(dc.Metrics, mc)
	}

	v1 := stats.StdDev(first.Series(precip))
	v2 := stats.StdDev(second.Series(precip))
	dc.PrecipVolatility = VolatilityContrast{First: v1, Second: v2, Direction: direction(v1, v2)}
	return dc
}

func direction(before, after float64) string {
	switch {
	case after > before:
		return Increased
	case after < before:
		return Decreased
	default:
		return Unchanged
	}
}

func yearSpan(series domain.GlobalTrends) string {
	if len(series) == 0 {
		return "none"
	}
	first, last := series[0].Year, series[len(series)-1].Year
	if first == last {
		return fmt.Sprint(first)
	}
	return fmt.Sprintf("%d-%d", first, last)
}

// Acceleration compares warming slopes of the two halves of the series.
type Acceleration struct {
	FirstSpan   string
	SecondSpan  string
	FirstSlope  float64
	SecondSlope float64
	// Factor is SecondSlope / FirstSlope, undefined for a flat first half.
	Factor stats.Ratio
}

// Accelerate splits the temperature series at floor(n/2) and reports the
// ratio of the second half's slope to the first half's.
func Accelerate(global domain.GlobalTrends) Acceleration {
	mid := len(global) / 2
	first, second := global[:mid], global[mid:]

	s1 := stats.Slope(first.Series(temp))
	s2 := stats.Slope(second.Series(temp))
	return Acceleration{
		FirstSpan:   yearSpan(first),
		SecondSpan:  yearSpan(second),
		FirstSlope:  s1,
		SecondSlope: s2,
		Factor:      stats.Divide(s2, s1),
	}
}

// YearRatio is one year's cumulative temperature-per-CO2 ratio.
type YearRatio struct {
	Year  int
	Ratio float64
}

// Sensitivity is the cumulative-baseline proxy for warming per ppm CO2.
type Sensitivity struct {
	Mean   float64
	Ratios []YearRatio
}

// Sensitize computes (temp[i]-temp[0]) / (co2[i]-co2[0]) for every year
// after the first, skipping years whose CO2 delta is exactly zero, and
// averages the ratios. With no usable year the mean is 0.
func Sensitize(global domain.GlobalTrends) Sensitivity {
	var s Sensitivity
	if len(global) == 0 {
		return s
	}
	base := global[0]
	values := make([]float64, 0, len(global))
	for _, r := range global[1:] {
		dCO2 := r.CO2 - base.CO2
		if dCO2 == 0 {
			continue
		}
		ratio := (r.Temp - base.Temp) / dCO2
		s.Ratios = append(s.Ratios, YearRatio{Year: r.Year, Ratio: ratio})
		values = append(values, ratio)
	}
	s.Mean = stats.Mean(values)
	return s
}

// OutlierSet holds the IQR outliers of one metric.
type OutlierSet struct {
	Metric string
	Unit   string
	Fences stats.Fences
	Values []stats.Outlier
}

// DetectOutliers runs IQR detection on temperature, precipitation and wind,
// labelling each flagged value with its year.
func DetectOutliers(global domain.GlobalTrends) []OutlierSet {
	years := global.Years()
	metrics := []struct {
		name, unit string
		pick       func(domain.GlobalTrend) float64
	}{
		{"Temperature", "°C", temp},
		{"Precipitation", "mm", precip},
		{"Wind", "kph", wind},
	}

	out := make([]OutlierSet, 0, len(metrics))
	for _, m := range metrics {
		values := global.Series(m.pick)
		out = append(out, OutlierSet{
			Metric: m.name,
			Unit:   m.unit,
			Fences: stats.IQRFences(values),
			Values: stats.Outliers(values, years),
		})
	}
	return out
}

// Correlation is the Pearson coefficient of two yearly series.
type Correlation struct {
	X string
	Y string
	R float64
}

// Correlate computes the relationship pairs tracked by the report.
func Correlate(global domain.GlobalTrends) []Correlation {
	pairs := []struct {
		x, y   string
		px, py func(domain.GlobalTrend) float64
	}{
		{"Temperature", "CO2 Emissions", temp, co2},
		{"Temperature", "Sea Level Rise", temp, sea},
		{"Precipitation", "Humidity", precip, humidity},
		{"Wind Speed", "Precipitation", wind, precip},
	}

	out := make([]Correlation, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, Correlation{X: p.x, Y: p.y, R: stats.Pearson(global.Series(p.px), global.Series(p.py))})
	}
	return out
}

// Summary is the descriptive snapshot of one yearly series.
type Summary struct {
	Metric string
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Summarize describes the temperature, CO2 and sea level series.
func Summarize(global domain.GlobalTrends) []Summary {
	metrics := []struct {
		name string
		pick func(domain.GlobalTrend) float64
	}{
		{"Temperature", temp},
		{"CO2 Emissions", co2},
		{"Sea Level", sea},
	}

	out := make([]Summary, 0, len(metrics))
	for _, m := range metrics {
		v := global.Series(m.pick)
		out = append(out, Summary{
			Metric: m.name,
			Mean:   stats.Mean(v),
			StdDev: stats.StdDev(v),
			Min:    stats.Min(v),
			Max:    stats.Max(v),
		})
	}
	return out
}

// YearValue pairs a year with a value.
type YearValue struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Anomaly is the deviation of each yearly temperature from the mean of the
// baseline period.
type Anomaly struct {
	BaselineStart int
	BaselineEnd   int
	BaselineYears int
	BaselineMean  float64
	// Defined is false when no year falls inside the baseline period.
	Defined bool
	Years   []YearValue
}

// Latest returns the anomaly of the most recent year.
func (a Anomaly) Latest() (YearValue, bool) {
	if !a.Defined || len(a.Years) == 0 {
		return YearValue{}, false
	}
	return a.Years[len(a.Years)-1], true
}

// Anomalies computes temperature anomalies against the inclusive baseline
// period [start, end].
func Anomalies(global domain.GlobalTrends, start, end int) Anomaly {
	a := Anomaly{BaselineStart: start, BaselineEnd: end}

	var baseline []float64
	for _, r := range global {
		if r.Year >= start && r.Year <= end {
			baseline = append(baseline, r.Temp)
		}
	}
	if len(baseline) == 0 {
		return a
	}

	a.Defined = true
	a.BaselineYears = len(baseline)
	a.BaselineMean = stats.Mean(baseline)
	a.Years = make([]YearValue, len(global))
	for i, r := range global {
		a.Years[i] = YearValue{Year: r.Year, Value: r.Temp - a.BaselineMean}
	}
	return a
}
