package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
)

// EDAHeader is the header row of EDA_RESULTS.csv.
var EDAHeader = []string{
	"year", "temp_c", "co2_ppm", "sea_mm", "precip_mm",
	"humidity_percent", "wind_kph", "temp_change_yoy", "co2_change_yoy",
}

// EDARow is one year of the EDA table with its year-over-year deltas. The
// first year's deltas are 0.
type EDARow struct {
	domain.GlobalTrend
	TempChange float64
	CO2Change  float64
}

// EDARows derives the year-over-year table from the global series.
func EDARows(global domain.GlobalTrends) []EDARow {
	rows := make([]EDARow, len(global))
	for i, g := range global {
		rows[i].GlobalTrend = g
		if i > 0 {
			rows[i].TempChange = g.Temp - global[i-1].Temp
			rows[i].CO2Change = g.CO2 - global[i-1].CO2
		}
	}
	return rows
}

// WriteEDACSV writes the year-over-year table as CSV. Values use the
// shortest exact representation; deltas are rounded to three decimals.
func WriteEDACSV(w io.Writer, global domain.GlobalTrends) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EDAHeader); err != nil {
		return fmt.Errorf("write eda header: %w", err)
	}

	for i, r := range EDARows(global) {
		record := []string{
			strconv.Itoa(r.Year),
			number(r.Temp),
			number(r.CO2),
			number(r.Sea),
			number(r.Precip),
			number(r.Humidity),
			number(r.Wind),
			delta(i, r.TempChange),
			delta(i, r.CO2Change),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write eda row %d: %w", r.Year, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush eda csv: %w", err)
	}
	return nil
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func delta(i int, v float64) string {
	if i == 0 {
		return "0"
	}
	return fixed(3, v)
}
