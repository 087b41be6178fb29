// Command validate checks the pipeline artifacts against the CSV dataset they
// were built from. It recomputes the yearly aggregates, then verifies
// global_trends.json, country_trends.json and EDA_RESULTS.csv phase by
// phase: row counts, ascending years, means within tolerance, and no NaN.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir dataset \
//	  -output-dir public/data \
//	  -docs-dir docs
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/couchcryptid/climate-data-pipeline/internal/adapter/artifact"
	"github.com/couchcryptid/climate-data-pipeline/internal/adapter/csvsource"
	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
	"github.com/couchcryptid/climate-data-pipeline/internal/report"
)

const tolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "dataset", "directory containing the raw CSV files")
	outputDir := flag.String("output-dir", "public/data", "directory containing the JSON trend artifacts")
	docsDir := flag.String("docs-dir", "docs", "directory containing INSIGHTS.md and eda/")
	flag.Parse()

	os.Exit(run(os.Stdout, *dataDir, *outputDir, *docsDir))
}

func run(w io.Writer, dataDir, outputDir, docsDir string) int {
	fmt.Fprintln(w, "=== Climate Data Integrity Validation ===")
	fmt.Fprintln(w)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	obs, ingest, err := csvsource.New(dataDir, logger).Read(context.Background())
	if err != nil {
		fmt.Fprintf(w, "FATAL: read dataset: %v\n", err)
		return 1
	}
	wantGlobal, wantCountries := domain.Aggregate(obs)

	gotGlobal, err := artifact.ReadGlobalTrends(outputDir)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load global trends: %v\n", err)
		return 1
	}
	gotCountries, err := artifact.ReadCountryTrends(outputDir)
	if err != nil {
		fmt.Fprintf(w, "FATAL: load country trends: %v\n", err)
		return 1
	}
	edaRows, err := loadCSV(filepath.Join(docsDir, artifact.EDADir, artifact.EDACSV))
	if err != nil {
		fmt.Fprintf(w, "FATAL: load EDA results: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateGlobal(gotGlobal, wantGlobal),
		validateCountries(gotCountries, wantCountries),
		validateEDA(edaRows, gotGlobal),
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Rows: %d read, %d valid, %d rejected; %d years, %d countries\n",
		ingest.Rows, ingest.Valid, ingest.RejectedTotal(), len(wantGlobal), len(wantCountries))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func loadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}

// ── Phases ──

func validateGlobal(got, want domain.GlobalTrends) *phase {
	p := &phase{name: "Global trends"}
	if len(got) != len(want) {
		p.errorf("year count: got %d, recomputed %d", len(got), len(want))
	}
	checkAscending(p, "global", got.Years())

	for i := range min(len(got), len(want)) {
		g, w := got[i], want[i]
		if g.Year != w.Year {
			p.errorf("row %d: year %d, recomputed %d", i, g.Year, w.Year)
			continue
		}
		for _, m := range []struct {
			name     string
			got, exp float64
		}{
			{"temp", g.Temp, w.Temp},
			{"co2", g.CO2, w.CO2},
			{"sea", g.Sea, w.Sea},
			{"precip", g.Precip, w.Precip},
			{"humidity", g.Humidity, w.Humidity},
			{"wind", g.Wind, w.Wind},
		} {
			checkValue(p, fmt.Sprintf("%d %s", g.Year, m.name), m.got, m.exp)
		}
	}
	return p
}

func validateCountries(got, want domain.CountryTrends) *phase {
	p := &phase{name: "Country trends"}
	if !slices.Equal(got.Countries(), want.Countries()) {
		p.errorf("countries: got %v, recomputed %v", got.Countries(), want.Countries())
	}

	for _, name := range want.Countries() {
		g, w := got[name], want[name]
		if len(g) != len(w) {
			p.errorf("%s: %d years, recomputed %d", name, len(g), len(w))
			continue
		}
		years := make([]int, len(g))
		for i := range g {
			years[i] = g[i].Year
			if g[i].Year != w[i].Year {
				p.errorf("%s row %d: year %d, recomputed %d", name, i, g[i].Year, w[i].Year)
				continue
			}
			label := fmt.Sprintf("%s %d", name, g[i].Year)
			checkValue(p, label+" temp", g[i].Temp, w[i].Temp)
			checkValue(p, label+" co2", g[i].CO2, w[i].CO2)
			checkValue(p, label+" sea", g[i].Sea, w[i].Sea)
		}
		checkAscending(p, name, years)
	}
	return p
}

func validateEDA(rows [][]string, global domain.GlobalTrends) *phase {
	p := &phase{name: "EDA results"}
	if len(rows) == 0 {
		p.errorf("file is empty")
		return p
	}
	if !slices.Equal(rows[0], report.EDAHeader) {
		p.errorf("header: got %v", rows[0])
	}
	data := rows[1:]
	if len(data) != len(global) {
		p.errorf("row count: got %d, want %d", len(data), len(global))
	}

	for i := range min(len(data), len(global)) {
		row := data[i]
		if len(row) != len(report.EDAHeader) {
			p.errorf("row %d: %d fields", i+1, len(row))
			continue
		}
		year, err := strconv.Atoi(row[0])
		if err != nil || year != global[i].Year {
			p.errorf("row %d: year %q, want %d", i+1, row[0], global[i].Year)
			continue
		}
		temp, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			p.errorf("%d temp_c: %v", year, err)
			continue
		}
		checkValue(p, fmt.Sprintf("%d temp_c", year), temp, global[i].Temp)

		for j, cell := range row[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				p.errorf("%d %s: not a finite number: %q", year, report.EDAHeader[j+1], cell)
			}
		}
	}
	return p
}

func checkAscending(p *phase, label string, years []int) {
	for i := 1; i < len(years); i++ {
		if years[i] <= years[i-1] {
			p.errorf("%s: year %d follows %d", label, years[i], years[i-1])
		}
	}
}

func checkValue(p *phase, label string, got, want float64) {
	if math.IsNaN(got) || math.IsInf(got, 0) {
		p.errorf("%s: non-finite value %v", label, got)
		return
	}
	if math.Abs(got-want) > tolerance {
		p.errorf("%s: got %v, recomputed %v", label, got, want)
	}
}
