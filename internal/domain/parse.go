package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMissingColumn is returned when a header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Rejection reasons recorded for rows that do not become observations.
const (
	ReasonFieldCount     = "field_count"
	ReasonInvalidDate    = "invalid_date"
	ReasonInvalidNumber  = "invalid_number"
	ReasonMissingCountry = "missing_country"
)

// dateLayouts are tried in order when parsing the Date column.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

// RowError describes why a data row was rejected.
type RowError struct {
	Reason string
	Column string
	Value  string
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return "reject row: " + e.Reason
	}
	return fmt.Sprintf("reject row: %s: column %q value %q", e.Reason, e.Column, e.Value)
}

// Header maps dataset column names to field positions.
type Header struct {
	index map[string]int
	width int
}

// NewHeader builds a Header from a CSV header row. Names are trimmed and
// stripped of stray quotes. It fails with ErrMissingColumn when any of
// RequiredColumns is absent.
func NewHeader(fields []string) (Header, error) {
	h := Header{index: make(map[string]int, len(fields)), width: len(fields)}
	for i, f := range fields {
		name := strings.TrimPrefix(f, "\ufeff")
		name = strings.TrimSpace(strings.ReplaceAll(name, `"`, ""))
		h.index[name] = i
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := h.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return Header{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return h, nil
}

// Width returns the number of fields declared by the header.
func (h Header) Width() int { return h.width }

// ParseRow converts a data row into an Observation. Rows are rejected with a
// *RowError rather than coerced: a numeric cell that does not parse is never
// turned into NaN.
func (h Header) ParseRow(row []string) (Observation, error) {
	if len(row) != h.width {
		return Observation{}, &RowError{Reason: ReasonFieldCount}
	}

	rawDate := h.field(row, ColumnDate)
	date, ok := parseDate(rawDate)
	if !ok {
		return Observation{}, &RowError{Reason: ReasonInvalidDate, Column: ColumnDate, Value: rawDate}
	}

	country := h.field(row, ColumnCountry)
	if country == "" {
		return Observation{}, &RowError{Reason: ReasonMissingCountry, Column: ColumnCountry}
	}

	obs := Observation{Date: date, Country: country}
	targets := []struct {
		column string
		dst    *float64
	}{
		{ColumnTemperature, &obs.Temperature},
		{ColumnCO2Emissions, &obs.CO2Emissions},
		{ColumnSeaLevelRise, &obs.SeaLevelRise},
		{ColumnPrecipitation, &obs.Precipitation},
		{ColumnHumidity, &obs.Humidity},
		{ColumnWindSpeed, &obs.WindSpeed},
	}
	for _, t := range targets {
		raw := h.field(row, t.column)
		v, err := parseFinite(raw)
		if err != nil {
			return Observation{}, &RowError{Reason: ReasonInvalidNumber, Column: t.column, Value: raw}
		}
		*t.dst = v
	}
	return obs, nil
}

func (h Header) field(row []string, column string) string {
	return strings.TrimSpace(row[h.index[column]])
}

// parseDate accepts the date layouts seen in dataset exports and returns
// the instant in UTC.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}
