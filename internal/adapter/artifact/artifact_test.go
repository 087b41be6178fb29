package artifact

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
	"github.com/couchcryptid/climate-data-pipeline/internal/observability"
)

func newTestWriter() (*Writer, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return NewWriter(slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

func text(path, body string) File {
	return File{Path: path, Render: func(w io.Writer) error {
		_, err := io.WriteString(w, body)
		return err
	}}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCommit_WritesAllFiles(t *testing.T) {
	dir := t.TempDir()
	w, m := newTestWriter()

	err := w.Commit(context.Background(), []File{
		text(filepath.Join(dir, "a.txt"), "alpha"),
		JSON(filepath.Join(dir, "nested", GlobalTrends), domain.GlobalTrends{{Year: 2000, Temp: 1.5}}),
	})

	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	g, err := ReadGlobalTrends(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Equal(t, domain.GlobalTrends{{Year: 2000, Temp: 1.5}}, g)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArtifactsWritten.WithLabelValues(GlobalTrends)))
	assert.ElementsMatch(t, []string{"a.txt", "nested"}, listDir(t, dir))
}

func TestCommit_FailureLeavesDestinationUntouched(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))
	w, _ := newTestWriter()

	err := w.Commit(context.Background(), []File{
		text(existing, "new"),
		{Path: filepath.Join(dir, "b.txt"), Render: func(io.Writer) error { return errors.New("boom") }},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
	assert.Equal(t, []string{"a.txt"}, listDir(t, dir))
}

func TestCommit_RenameFailureRestoresPreviousSet(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))
	// A directory in place of c.txt makes the last rename fail.
	blocked := filepath.Join(dir, "c.txt")
	require.NoError(t, os.Mkdir(blocked, 0o755))
	w, m := newTestWriter()

	err := w.Commit(context.Background(), []File{
		text(existing, "new"),
		text(filepath.Join(dir, "b.txt"), "beta"),
		text(blocked, "gamma"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit "+blocked)
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
	assert.ElementsMatch(t, []string{"a.txt", "c.txt"}, listDir(t, dir))
	assert.Zero(t, testutil.ToFloat64(m.ArtifactsWritten.WithLabelValues("a.txt")))
}

func TestCommit_ReplacesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))
	w, _ := newTestWriter()

	require.NoError(t, w.Commit(context.Background(), []File{text(existing, "new")}))

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.Equal(t, []string{"a.txt"}, listDir(t, dir))
}

func TestCommit_CancelledBeforeRename(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWriter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Commit(ctx, []File{text(filepath.Join(dir, "a.txt"), "alpha")})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, listDir(t, dir))
}

func TestJSON_IsIndentedAndSorted(t *testing.T) {
	dir := t.TempDir()
	w, _ := newTestWriter()
	path := filepath.Join(dir, CountryTrends)

	trends := domain.CountryTrends{
		"Peru":  {{Year: 2000, Temp: 2}},
		"Chile": {{Year: 2000, Temp: 1}},
	}
	require.NoError(t, w.Commit(context.Background(), []File{JSON(path, trends)}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `{
  "Chile": [
    {
      "year": 2000,
      "temp": 1,
      "co2": 0,
      "sea": 0
    }
  ],
  "Peru": [
    {
      "year": 2000,
      "temp": 2,
      "co2": 0,
      "sea": 0
    }
  ]
}
`
	assert.Equal(t, want, string(data))
}

func TestReaders_MissingArtifact(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadGlobalTrends(dir)
	require.ErrorIs(t, err, ErrMissingArtifact)

	_, err = ReadCountryTrends(dir)
	require.ErrorIs(t, err, ErrMissingArtifact)

	require.ErrorIs(t, Exists(dir, GlobalTrends), ErrMissingArtifact)
}

func TestReaders_CorruptJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, GlobalTrends), []byte("{not json"), 0o644))

	_, err := ReadGlobalTrends(dir)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingArtifact)
}

func TestReadCountryTrends_EmptyObject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CountryTrends), []byte("{}"), 0o644))

	c, err := ReadCountryTrends(dir)

	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Empty(t, c)
	require.NoError(t, Exists(dir, CountryTrends))
}

func TestReadiness(t *testing.T) {
	dir := t.TempDir()
	r := Readiness{Dir: dir}

	require.ErrorIs(t, r.CheckReadiness(context.Background()), ErrMissingArtifact)

	require.NoError(t, os.WriteFile(filepath.Join(dir, GlobalTrends), []byte("[]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, CountryTrends), []byte("{}"), 0o644))
	require.NoError(t, r.CheckReadiness(context.Background()))
}
