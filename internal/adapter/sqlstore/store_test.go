package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "trends.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReplaceTrends_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	finished := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	global := domain.GlobalTrends{
		{Year: 2000, Temp: 14.1, CO2: 400, Sea: 1, Precip: 50, Humidity: 60, Wind: 10},
		{Year: 2001, Temp: 14.3, CO2: 402, Sea: 1.2, Precip: 51, Humidity: 61, Wind: 11},
	}
	countries := domain.CountryTrends{
		"Peru":  {{Year: 2000, Temp: 20, CO2: 390, Sea: 0.5}},
		"Chile": {{Year: 2000, Temp: 10, CO2: 410, Sea: 1.5}, {Year: 2001, Temp: 11, CO2: 411, Sea: 1.6}},
	}

	require.NoError(t, s.ReplaceTrends(ctx, "run-1", finished, global, countries))

	gotGlobal, err := s.GlobalTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, global, gotGlobal)

	gotCountries, err := s.CountryTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, countries, gotCountries)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, 2, runs[0].Years)
	assert.Equal(t, 2, runs[0].Countries)
	assert.True(t, finished.Equal(runs[0].FinishedAt))
}

func TestReplaceTrends_ReplacesPreviousSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceTrends(ctx, "run-1", time.Unix(100, 0),
		domain.GlobalTrends{{Year: 1999}, {Year: 2000}},
		domain.CountryTrends{"Chile": {{Year: 1999}}}))
	require.NoError(t, s.ReplaceTrends(ctx, "run-2", time.Unix(200, 0),
		domain.GlobalTrends{{Year: 2005, Temp: 3}},
		domain.CountryTrends{}))

	global, err := s.GlobalTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.GlobalTrends{{Year: 2005, Temp: 3}}, global)

	countries, err := s.CountryTrends(ctx)
	require.NoError(t, err)
	assert.Empty(t, countries)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[1].RunID)
}

func TestReplaceTrends_DuplicateRunRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceTrends(ctx, "run-1", time.Unix(100, 0), domain.GlobalTrends{{Year: 2000}}, nil))
	err := s.ReplaceTrends(ctx, "run-1", time.Unix(200, 0), domain.GlobalTrends{{Year: 2010}}, nil)
	require.Error(t, err)

	global, err := s.GlobalTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.GlobalTrends{{Year: 2000}}, global)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "nosuchdriver", "x")
	require.Error(t, err)
}
