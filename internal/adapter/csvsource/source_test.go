package csvsource

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
)

const header = "Date,Location,Country,Temperature,CO2 Emissions,Sea Level Rise,Precipitation,Humidity,Wind Speed\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestRead_MalformedRowTolerance(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.csv": header +
			"2000-01-01,Town,Chile,10,400,1,50,60,10\n" +
			"2000-02-01,Town,Chile,12,401,1,50,60\n" + // one field short
			"2000-03-01,Town,Peru,14,402,1,50,60,10\n" +
			"not-a-date,Town,Peru,14,402,1,50,60,10\n" +
			"2000-04-01,Town,Peru,abc,402,1,50,60,10\n" +
			"2000-05-01,Town,,14,402,1,50,60,10\n",
	})

	obs, stats, err := New(dir, discardLogger()).Read(context.Background())

	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "Chile", obs[0].Country)
	assert.Equal(t, "Peru", obs[1].Country)

	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 6, stats.Rows)
	assert.Equal(t, 2, stats.Valid)
	assert.Equal(t, 4, stats.RejectedTotal())
	assert.Equal(t, map[string]int{
		domain.ReasonFieldCount:     1,
		domain.ReasonInvalidDate:    1,
		domain.ReasonInvalidNumber:  1,
		domain.ReasonMissingCountry: 1,
	}, stats.Rejected)

	global, _ := domain.Aggregate(obs)
	require.Len(t, global, 1)
	assert.Equal(t, 12.0, global[0].Temp)
}

func TestRead_AllRowsRejected(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.csv": header + "2000-01-01,Town,Chile,abc,400,1,50,60,10\n",
	})

	obs, stats, err := New(dir, discardLogger()).Read(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, obs)
	assert.Empty(t, obs)
	assert.Equal(t, 1, stats.RejectedTotal())
}

func TestRead_OrderInvariantAcrossFiles(t *testing.T) {
	rows := []string{
		"2001-01-01,X,Chile,11,401,1.1,51,61,11\n",
		"2000-01-01,X,Peru,20,400,1,50,60,10\n",
		"2000-01-01,X,Chile,10,400,1,50,60,10\n",
		"2001-06-01,X,Peru,21.5,402,1.2,52,62,12\n",
	}

	a := writeFiles(t, map[string]string{
		"1.csv": header + rows[0] + rows[1],
		"2.csv": header + rows[2] + rows[3],
	})
	b := writeFiles(t, map[string]string{
		"x.csv": header + rows[3] + rows[2] + rows[1],
		"y.csv": header + rows[0],
	})

	obsA, _, err := New(a, discardLogger()).Read(context.Background())
	require.NoError(t, err)
	obsB, _, err := New(b, discardLogger()).Read(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(obsA, obsB); diff != "" {
		t.Errorf("observations differ by file layout (-a +b):\n%s", diff)
	}
	for i := 1; i < len(obsA); i++ {
		assert.False(t, obsA[i].Date.Before(obsA[i-1].Date), "not sorted at %d", i)
	}
}

func TestRead_IgnoresNonCSVAndDirectories(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"data.CSV":  header + "2000-01-01,X,Chile,10,400,1,50,60,10\n",
		"notes.txt": "not data",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755))

	obs, stats, err := New(dir, discardLogger()).Read(context.Background())

	require.NoError(t, err)
	assert.Len(t, obs, 1)
	assert.Equal(t, 1, stats.Files)
}

func TestRead_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, _, err := New(filepath.Join(t.TempDir(), "absent"), discardLogger()).Read(context.Background())
		require.ErrorIs(t, err, ErrNoInput)
	})

	t.Run("no csv files", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"readme.md": "#"})
		_, _, err := New(dir, discardLogger()).Read(context.Background())
		require.ErrorIs(t, err, ErrNoInput)
	})

	t.Run("missing column", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"a.csv": "Date,Country,Temperature\n2000-01-01,Chile,10\n"})
		_, _, err := New(dir, discardLogger()).Read(context.Background())
		require.ErrorIs(t, err, domain.ErrMissingColumn)
		assert.True(t, strings.Contains(err.Error(), "a.csv"))
	})

	t.Run("empty file", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"a.csv": ""})
		_, _, err := New(dir, discardLogger()).Read(context.Background())
		require.ErrorIs(t, err, domain.ErrMissingColumn)
	})

	t.Run("cancelled", func(t *testing.T) {
		dir := writeFiles(t, map[string]string{"a.csv": header})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := New(dir, discardLogger()).Read(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}
