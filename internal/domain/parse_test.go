package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHeader = []string{
	"Date", "Location", "Country", "Temperature", "CO2 Emissions",
	"Sea Level Rise", "Precipitation", "Humidity", "Wind Speed",
}

func mustHeader(t *testing.T, fields []string) Header {
	t.Helper()
	h, err := NewHeader(fields)
	require.NoError(t, err)
	return h
}

func TestNewHeader(t *testing.T) {
	t.Run("all columns", func(t *testing.T) {
		h := mustHeader(t, testHeader)
		assert.Equal(t, 9, h.Width())
	})

	t.Run("quoted and padded names", func(t *testing.T) {
		fields := []string{
			"\ufeffDate", ` "Country" `, "Temperature", "CO2 Emissions",
			"Sea Level Rise", "Precipitation", "Humidity", "Wind Speed",
		}
		h := mustHeader(t, fields)
		assert.Equal(t, 8, h.Width())
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := NewHeader([]string{"Date", "Country", "Temperature"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingColumn))
		assert.Contains(t, err.Error(), "CO2 Emissions")
		assert.Contains(t, err.Error(), "Wind Speed")
	})
}

func TestHeader_ParseRow(t *testing.T) {
	h := mustHeader(t, testHeader)

	t.Run("valid row drops location", func(t *testing.T) {
		row := []string{"2000-01-01 00:00:00.000000000", "New Williamtown", "Latvia", "10.688", "403.12", "0.717", "13.835", "23.631", "18.492"}
		obs, err := h.ParseRow(row)

		require.NoError(t, err)
		assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), obs.Date)
		assert.Equal(t, "Latvia", obs.Country)
		assert.Equal(t, 10.688, obs.Temperature)
		assert.Equal(t, 403.12, obs.CO2Emissions)
		assert.Equal(t, 0.717, obs.SeaLevelRise)
		assert.Equal(t, 13.835, obs.Precipitation)
		assert.Equal(t, 23.631, obs.Humidity)
		assert.Equal(t, 18.492, obs.WindSpeed)
	})

	t.Run("negative sea level", func(t *testing.T) {
		row := []string{"2011-06-30", "x", "Chile", "20", "400", "-1.5", "10", "50", "12"}
		obs, err := h.ParseRow(row)

		require.NoError(t, err)
		assert.Equal(t, -1.5, obs.SeaLevelRise)
		assert.Equal(t, 2011, obs.Year())
	})

	tests := []struct {
		name   string
		row    []string
		reason string
		column string
	}{
		{
			name:   "one field short",
			row:    []string{"2000-01-01", "x", "Latvia", "10", "400", "0.7", "13", "23"},
			reason: ReasonFieldCount,
		},
		{
			name:   "one field extra",
			row:    []string{"2000-01-01", "x", "Latvia", "10", "400", "0.7", "13", "23", "18", "extra"},
			reason: ReasonFieldCount,
		},
		{
			name:   "unparseable date",
			row:    []string{"yesterday", "x", "Latvia", "10", "400", "0.7", "13", "23", "18"},
			reason: ReasonInvalidDate,
			column: ColumnDate,
		},
		{
			name:   "empty country",
			row:    []string{"2000-01-01", "x", " ", "10", "400", "0.7", "13", "23", "18"},
			reason: ReasonMissingCountry,
			column: ColumnCountry,
		},
		{
			name:   "non-numeric temperature",
			row:    []string{"2000-01-01", "x", "Latvia", "warm", "400", "0.7", "13", "23", "18"},
			reason: ReasonInvalidNumber,
			column: ColumnTemperature,
		},
		{
			name:   "empty wind speed",
			row:    []string{"2000-01-01", "x", "Latvia", "10", "400", "0.7", "13", "23", ""},
			reason: ReasonInvalidNumber,
			column: ColumnWindSpeed,
		},
		{
			name:   "NaN literal",
			row:    []string{"2000-01-01", "x", "Latvia", "10", "NaN", "0.7", "13", "23", "18"},
			reason: ReasonInvalidNumber,
			column: ColumnCO2Emissions,
		},
		{
			name:   "infinite humidity",
			row:    []string{"2000-01-01", "x", "Latvia", "10", "400", "0.7", "13", "+Inf", "18"},
			reason: ReasonInvalidNumber,
			column: ColumnHumidity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.ParseRow(tt.row)
			require.Error(t, err)

			var rowErr *RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, tt.reason, rowErr.Reason)
			assert.Equal(t, tt.column, rowErr.Column)
		})
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2005, 3, 7, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"iso date", "2005-03-07", want, true},
		{"dataset timestamp", "2005-03-07 00:00:00.000000000", want, true},
		{"rfc3339", "2005-03-07T00:00:00Z", want, true},
		{"rfc3339 with offset normalized to UTC", "2005-03-07T02:00:00+02:00", want, true},
		{"slash date", "2005/03/07", want, true},
		{"us date", "03/07/2005", want, true},
		{"empty", "", time.Time{}, false},
		{"invalid month", "2005-13-07", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestSortObservations_PermutationInvariant(t *testing.T) {
	d := time.Date(2001, 5, 1, 0, 0, 0, 0, time.UTC)
	a := []Observation{
		{Date: d, Country: "Peru", Temperature: 2},
		{Date: d, Country: "Chad", Temperature: 9},
		{Date: d, Country: "Peru", Temperature: 1},
		{Date: d.AddDate(-1, 0, 0), Country: "Peru", Temperature: 5},
	}
	b := []Observation{a[2], a[3], a[0], a[1]}

	SortObservations(a)
	SortObservations(b)

	assert.Equal(t, a, b)
	assert.Equal(t, 2000, a[0].Year())
	assert.Equal(t, "Chad", a[1].Country)
	assert.Equal(t, 1.0, a[2].Temperature)
}
