// Package artifact commits pipeline outputs to disk as an all-or-nothing
// set and reads the trend files back for downstream phases.
package artifact

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
	"github.com/couchcryptid/climate-data-pipeline/internal/observability"
)

// ErrMissingArtifact is returned when a required input artifact does not
// exist.
var ErrMissingArtifact = errors.New("missing artifact")

// Artifact file names.
const (
	RawData            = "raw_data.json"
	GlobalTrends       = "global_trends.json"
	CountryTrends      = "country_trends.json"
	AccelerationMatrix = "acceleration_matrix.json"
	CountryLocations   = "country_locations.json"
	Insights           = "INSIGHTS.md"
	EDADir             = "eda"
	EDACSV             = "EDA_RESULTS.csv"
	EDAXLSX            = "EDA_RESULTS.xlsx"
	TrendChart         = "temperature_trend.png"
)

// File is one artifact to be committed.
type File struct {
	Path   string
	Render func(w io.Writer) error
}

// JSON returns a File that encodes v as indented JSON.
func JSON(path string, v any) File {
	return File{
		Path: path,
		Render: func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
}

// Writer commits artifact sets.
type Writer struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a Writer.
func NewWriter(logger *slog.Logger, metrics *observability.Metrics) *Writer {
	return &Writer{logger: logger, metrics: metrics}
}

type staged struct {
	tmp, dst string
	// backup holds the previous destination file while the set is being
	// swapped in; empty when there was none.
	backup string
	placed bool
}

// Commit renders every file to a temporary sibling and, only when all of
// them succeeded, renames them into place. Existing destinations are moved
// aside first so that a failed rename can restore every file to its
// previous state. On failure the temporaries and backups are removed.
func (w *Writer) Commit(ctx context.Context, files []File) (err error) {
	stages := make([]*staged, 0, len(files))
	defer func() {
		if err != nil {
			rollback(stages)
		}
	}()

	for _, f := range files {
		tmp, err := stage(f)
		if err != nil {
			return err
		}
		stages = append(stages, &staged{tmp: tmp, dst: f.Path})
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, s := range stages {
		if err := swapIn(s); err != nil {
			return fmt.Errorf("commit %s: %w", s.dst, err)
		}
	}

	for _, s := range stages {
		if s.backup != "" {
			os.Remove(s.backup)
		}
		w.metrics.ArtifactsWritten.WithLabelValues(filepath.Base(s.dst)).Inc()
		w.logger.Debug("artifact written", "path", s.dst)
	}
	return nil
}

// swapIn moves a regular destination file aside, then renames the staged
// file over it. Anything else at the destination makes the rename fail.
func swapIn(s *staged) error {
	if info, err := os.Lstat(s.dst); err == nil && info.Mode().IsRegular() {
		backup := s.tmp + ".prev"
		if err := os.Rename(s.dst, backup); err != nil {
			return err
		}
		s.backup = backup
	}
	if err := os.Rename(s.tmp, s.dst); err != nil {
		return err
	}
	s.placed = true
	return nil
}

// rollback restores the destinations of a failed commit in reverse order.
func rollback(stages []*staged) {
	for i := len(stages) - 1; i >= 0; i-- {
		s := stages[i]
		if !s.placed {
			os.Remove(s.tmp)
		}
		switch {
		case s.backup != "":
			os.Rename(s.backup, s.dst)
		case s.placed:
			os.Remove(s.dst)
		}
	}
}

func stage(f File) (string, error) {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", f.Path, err)
	}

	bw := bufio.NewWriter(tmp)
	renderErr := f.Render(bw)
	if renderErr == nil {
		renderErr = bw.Flush()
	}
	closeErr := tmp.Close()
	if renderErr != nil || closeErr != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", f.Path, errors.Join(renderErr, closeErr))
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("chmod %s: %w", f.Path, err)
	}
	return tmp.Name(), nil
}

// ReadGlobalTrends loads global_trends.json from dir.
func ReadGlobalTrends(dir string) (domain.GlobalTrends, error) {
	var g domain.GlobalTrends
	if err := readJSON(filepath.Join(dir, GlobalTrends), &g); err != nil {
		return nil, err
	}
	return g, nil
}

// ReadCountryTrends loads country_trends.json from dir.
func ReadCountryTrends(dir string) (domain.CountryTrends, error) {
	var c domain.CountryTrends
	if err := readJSON(filepath.Join(dir, CountryTrends), &c); err != nil {
		return nil, err
	}
	if c == nil {
		c = domain.CountryTrends{}
	}
	return c, nil
}

// Exists reports whether every named artifact is present in dir.
func Exists(dir string, names ...string) error {
	for _, n := range names {
		if _, err := os.Stat(filepath.Join(dir, n)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrMissingArtifact, n)
			}
			return fmt.Errorf("stat %s: %w", n, err)
		}
	}
	return nil
}

// Readiness reports ready once the trend artifacts exist in Dir.
type Readiness struct {
	Dir string
}

func (r Readiness) CheckReadiness(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return Exists(r.Dir, GlobalTrends, CountryTrends)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMissingArtifact, path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
