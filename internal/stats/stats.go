// Package stats implements the descriptive statistics used by the insight
// report. Every function resolves its degenerate inputs (empty series,
// zero variance) to a defined value instead of NaN or Inf.
package stats

import (
	"slices"

	"github.com/montanaflynn/stats"
)

// Mean returns the arithmetic mean, or 0 for an empty series.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}

// StdDev returns the population standard deviation, or 0 for an empty
// series.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sd, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return 0
	}
	return sd
}

// Min returns the smallest value, or 0 for an empty series.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return slices.Min(values)
}

// Max returns the largest value, or 0 for an empty series.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return slices.Max(values)
}

// Pearson returns the Pearson correlation coefficient of x and y. It
// returns 0 when either series is constant, when the series are empty, or
// when their lengths differ.
func Pearson(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return 0
	}
	if StdDev(x) == 0 || StdDev(y) == 0 {
		return 0
	}
	r, err := stats.Pearson(x, y)
	if err != nil {
		return 0
	}
	return r
}

// Slope returns the ordinary least-squares slope of values regressed on
// their 0-based index. The index stands in for the year, so callers must
// pass a gap-free yearly series. Fewer than two points yield 0.
func Slope(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	varX, err := stats.PopulationVariance(x)
	if err != nil || varX == 0 {
		return 0
	}
	cov, err := stats.CovariancePopulation(x, values)
	if err != nil {
		return 0
	}
	return cov / varX
}

// Ratio is a quotient that may be undefined because its divisor was zero.
type Ratio struct {
	Value   float64
	Defined bool
}

// Divide returns num/den, or an undefined Ratio when den is zero.
func Divide(num, den float64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{Value: num / den, Defined: true}
}

// Outlier is a value outside the IQR fences together with its position and
// label in the original series.
type Outlier struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	Label int     `json:"label"`
}

// Fences holds the quartiles and outlier bounds of a series.
type Fences struct {
	Q1    float64
	Q3    float64
	IQR   float64
	Lower float64
	Upper float64
}

// IQRFences computes index-based quartiles of a sorted copy of values:
// Q1 is the element at floor(n/4) and Q3 the element at floor(3n/4), with
// no interpolation. Bounds lie 1.5 IQR beyond the quartiles. An empty
// series yields zero Fences.
func IQRFences(values []float64) Fences {
	n := len(values)
	if n == 0 {
		return Fences{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	q1 := sorted[n/4]
	q3 := sorted[(3*n)/4]
	iqr := q3 - q1
	return Fences{
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
		Lower: q1 - 1.5*iqr,
		Upper: q3 + 1.5*iqr,
	}
}

// Outliers flags every value strictly outside the IQR fences, in original
// order. labels must be parallel to values; a missing label is reported
// as 0.
func Outliers(values []float64, labels []int) []Outlier {
	if len(values) == 0 {
		return nil
	}
	f := IQRFences(values)

	var out []Outlier
	for i, v := range values {
		if v < f.Lower || v > f.Upper {
			label := 0
			if i < len(labels) {
				label = labels[i]
			}
			out = append(out, Outlier{Index: i, Value: v, Label: label})
		}
	}
	return out
}

// SecondDifferences returns values[i] - 2*values[i-1] + values[i-2] for
// every i >= 2, the discrete acceleration of a series.
func SecondDifferences(values []float64) []float64 {
	if len(values) < 3 {
		return nil
	}
	out := make([]float64, 0, len(values)-2)
	for i := 2; i < len(values); i++ {
		velocity := values[i] - values[i-1]
		prev := values[i-1] - values[i-2]
		out = append(out, velocity-prev)
	}
	return out
}
