// Package report renders an insights.Report and the yearly global series
// into the human-readable artifacts of the analysis phase.
package report

import (
	_ "embed"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/couchcryptid/climate-data-pipeline/internal/insights"
	"github.com/couchcryptid/climate-data-pipeline/internal/stats"
)

// Undefined is printed wherever a quotient has a zero divisor.
const Undefined = "undefined"

//go:embed insights.md.tmpl
var insightsTemplate string

var markdown = template.Must(template.New("insights").Funcs(template.FuncMap{
	"fixed":         fixed,
	"signed":        signed,
	"ratio":         ratio,
	"shift":         shift,
	"peak":          peak,
	"latest":        latest,
	"latestAnomaly": latestAnomaly,
	"lower":         strings.ToLower,
	"stamp":         func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	"inc":           func(i int) int { return i + 1 },
	"times":         func(v, k float64) float64 { return v * k },
}).Parse(insightsTemplate))

// WriteMarkdown renders rep as the INSIGHTS.md document.
func WriteMarkdown(w io.Writer, rep *insights.Report) error {
	if err := markdown.Execute(w, rep); err != nil {
		return fmt.Errorf("render insights: %w", err)
	}
	return nil
}

// fixed formats v with the given number of decimals. Negative zero and
// non-finite values never reach the document.
func fixed(decimals int, v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.HasPrefix(s, "-") && isZero(s[1:]) {
		return s[1:]
	}
	return s
}

func isZero(s string) bool {
	for _, c := range s {
		if c != '0' && c != '.' {
			return false
		}
	}
	return true
}

func signed(decimals int, v float64) string {
	s := fixed(decimals, v)
	if s == Undefined || s[0] == '-' || isZero(s) {
		return s
	}
	return "+" + s
}

func ratio(decimals int, r stats.Ratio) string {
	if !r.Defined {
		return Undefined
	}
	return fixed(decimals, r.Value)
}

func shift(r stats.Ratio) string {
	if !r.Defined {
		return Undefined
	}
	return signed(2, r.Value) + "%"
}

// peak reports the largest absolute second difference with its year.
func peak(cells []insights.HeatCell) string {
	if len(cells) == 0 {
		return "-"
	}
	best := cells[0]
	for _, c := range cells[1:] {
		if math.Abs(c.Y) > math.Abs(best.Y) {
			best = c
		}
	}
	return signed(3, best.Y) + " (" + best.X + ")"
}

func latest(cells []insights.HeatCell) string {
	if len(cells) == 0 {
		return "-"
	}
	last := cells[len(cells)-1]
	return signed(3, last.Y) + " (" + last.X + ")"
}

func latestAnomaly(a insights.Anomaly) *insights.YearValue {
	if v, ok := a.Latest(); ok {
		return &v
	}
	return nil
}
