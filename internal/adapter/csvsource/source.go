// Package csvsource reads climate observations from a directory of CSV
// files.
package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
)

// ErrNoInput is returned when the data directory is missing or holds no
// CSV files.
var ErrNoInput = errors.New("no CSV input")

// ReasonMalformed counts rows the CSV tokenizer itself could not read.
const ReasonMalformed = "malformed"

// IngestStats summarizes one read of the data directory.
type IngestStats struct {
	Files    int
	Rows     int
	Valid    int
	Rejected map[string]int
}

// RejectedTotal returns the number of rows dropped for any reason.
func (s IngestStats) RejectedTotal() int {
	n := 0
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

// Source reads every *.csv file of one directory.
type Source struct {
	dir    string
	logger *slog.Logger
}

// New creates a Source rooted at dir.
func New(dir string, logger *slog.Logger) *Source {
	return &Source{dir: dir, logger: logger}
}

// Read parses all CSV files in name order and returns the valid
// observations sorted canonically. Invalid rows are counted and skipped; a
// file whose header lacks a required column fails the whole read.
func (s *Source) Read(ctx context.Context) ([]domain.Observation, IngestStats, error) {
	stats := IngestStats{Rejected: map[string]int{}}

	files, err := s.files()
	if err != nil {
		return nil, stats, err
	}

	obs := []domain.Observation{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		parsed, err := s.readFile(path, &stats)
		if err != nil {
			return nil, stats, err
		}
		obs = append(obs, parsed...)
		stats.Files++
	}

	domain.SortObservations(obs)
	stats.Valid = len(obs)
	s.logger.Info("csv ingest complete",
		"files", stats.Files,
		"rows", stats.Rows,
		"valid", stats.Valid,
		"rejected", stats.RejectedTotal(),
	)
	return obs, stats, nil
}

func (s *Source) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrNoInput, s.dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(s.dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .csv files in %s", ErrNoInput, s.dir)
	}
	slices.Sort(files)
	return files, nil
}

func (s *Source) readFile(path string, stats *IngestStats) ([]domain.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrNoInput, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	fields, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file: %w", path, domain.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}
	header, err := domain.NewHeader(fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	name := filepath.Base(path)
	var obs []domain.Observation
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		stats.Rows++
		if err != nil {
			stats.Rejected[ReasonMalformed]++
			s.logger.Debug("csv row unreadable", "file", name, "error", err)
			continue
		}

		o, err := header.ParseRow(row)
		if err != nil {
			reason := ReasonMalformed
			var rowErr *domain.RowError
			if errors.As(err, &rowErr) {
				reason = rowErr.Reason
			}
			stats.Rejected[reason]++
			line, _ := r.FieldPos(0)
			s.logger.Debug("csv row rejected", "file", name, "line", line, "reason", reason, "error", err)
			continue
		}
		obs = append(obs, o)
	}
	return obs, nil
}
