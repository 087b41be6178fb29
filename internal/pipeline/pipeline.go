// Package pipeline wires the offline stages together: aggregation of the
// raw CSVs into trend artifacts, analysis of those trends into the report
// set, and the optional locate and publish steps that read the trends back.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/climate-data-pipeline/internal/adapter/artifact"
	"github.com/couchcryptid/climate-data-pipeline/internal/adapter/csvsource"
	"github.com/couchcryptid/climate-data-pipeline/internal/config"
	"github.com/couchcryptid/climate-data-pipeline/internal/domain"
	"github.com/couchcryptid/climate-data-pipeline/internal/insights"
	"github.com/couchcryptid/climate-data-pipeline/internal/observability"
	"github.com/couchcryptid/climate-data-pipeline/internal/report"
)

// TrendStore mirrors a freshly aggregated trend set into a database.
type TrendStore interface {
	ReplaceTrends(ctx context.Context, runID string, finishedAt time.Time, global domain.GlobalTrends, countries domain.CountryTrends) error
}

// TrendPublisher sends every trend record to a downstream consumer.
type TrendPublisher interface {
	PublishTrends(ctx context.Context, runID string, publishedAt time.Time, global domain.GlobalTrends, countries domain.CountryTrends) (int, error)
}

// Pipeline runs the stages against the directories named in the config.
type Pipeline struct {
	cfg     *config.Config
	store   TrendStore
	writer  *artifact.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
	newID   func() string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithStore mirrors every aggregation into s after the files are committed.
func WithStore(s TrendStore) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithClock replaces the wall clock used for timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithRunID replaces the run identifier generator.
func WithRunID(f func() string) Option {
	return func(p *Pipeline) { p.newID = f }
}

// New creates a Pipeline.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:     cfg,
		writer:  artifact.NewWriter(logger, metrics),
		logger:  logger,
		metrics: metrics,
		clock:   clockwork.NewRealClock(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AggregateResult summarizes one aggregation run.
type AggregateResult struct {
	RunID     string
	Ingest    csvsource.IngestStats
	Global    domain.GlobalTrends
	Countries domain.CountryTrends
}

// Aggregate reads the data directory and commits raw_data.json,
// global_trends.json and country_trends.json to the output directory.
func (p *Pipeline) Aggregate(ctx context.Context) (*AggregateResult, error) {
	runID := p.newID()
	logger := p.logger.With("run_id", runID, "stage", "aggregate")
	start := p.clock.Now()
	logger.Info("aggregation started", "data_dir", p.cfg.DataDir)

	obs, ingest, err := csvsource.New(p.cfg.DataDir, logger).Read(ctx)
	p.recordIngest(ingest)
	if err != nil {
		return nil, fmt.Errorf("read observations: %w", err)
	}

	global, countries := domain.Aggregate(obs)

	out := p.cfg.OutputDir
	if err := p.writer.Commit(ctx, []artifact.File{
		artifact.JSON(filepath.Join(out, artifact.RawData), obs),
		artifact.JSON(filepath.Join(out, artifact.GlobalTrends), global),
		artifact.JSON(filepath.Join(out, artifact.CountryTrends), countries),
	}); err != nil {
		return nil, fmt.Errorf("commit trend artifacts: %w", err)
	}

	if p.store != nil {
		if err := p.store.ReplaceTrends(ctx, runID, p.clock.Now(), global, countries); err != nil {
			return nil, fmt.Errorf("store trends: %w", err)
		}
		logger.Info("trends stored")
	}

	p.metrics.Observations.Set(float64(len(obs)))
	p.metrics.Years.Set(float64(len(global)))
	p.metrics.Countries.Set(float64(len(countries)))
	duration := p.succeed("aggregate", start)

	logger.Info("aggregation complete",
		"files", ingest.Files,
		"rows", ingest.Rows,
		"rejected", ingest.RejectedTotal(),
		"years", len(global),
		"countries", len(countries),
		"duration", duration,
	)
	return &AggregateResult{RunID: runID, Ingest: ingest, Global: global, Countries: countries}, nil
}

func (p *Pipeline) recordIngest(s csvsource.IngestStats) {
	p.metrics.FilesRead.Add(float64(s.Files))
	p.metrics.RowsRead.Add(float64(s.Rows))
	for reason, n := range s.Rejected {
		p.metrics.RowsRejected.WithLabelValues(reason).Add(float64(n))
	}
}

// Analyze reads the trend artifacts and commits INSIGHTS.md, the EDA set
// and acceleration_matrix.json. Nothing is written when a trend file is
// missing or the analysis fails.
func (p *Pipeline) Analyze(ctx context.Context) (*insights.Report, error) {
	logger := p.logger.With("stage", "analyze")
	start := p.clock.Now()
	logger.Info("analysis started", "output_dir", p.cfg.OutputDir)

	global, countries, err := p.readTrends()
	if err != nil {
		return nil, err
	}

	analyzer := insights.New(p.insightsConfig(), p.clock)
	rep, err := analyzer.Analyze(global, countries)
	if err != nil {
		return nil, fmt.Errorf("analyze trends: %w", err)
	}

	edaDir := filepath.Join(p.cfg.DocsDir, artifact.EDADir)
	files := []artifact.File{
		{Path: filepath.Join(p.cfg.DocsDir, artifact.Insights), Render: func(w io.Writer) error {
			return report.WriteMarkdown(w, rep)
		}},
		{Path: filepath.Join(edaDir, artifact.EDACSV), Render: func(w io.Writer) error {
			return report.WriteEDACSV(w, global)
		}},
		artifact.JSON(filepath.Join(p.cfg.OutputDir, artifact.AccelerationMatrix), rep.Matrix),
	}
	if p.cfg.XLSXEnabled {
		ranking := insights.RankVolatility(countries)
		files = append(files, artifact.File{Path: filepath.Join(edaDir, artifact.EDAXLSX), Render: func(w io.Writer) error {
			return report.WriteXLSX(w, global, ranking)
		}})
	}
	if p.cfg.ChartEnabled {
		if len(global) < 2 {
			logger.Warn("trend chart skipped", "error", report.ErrTooFewYears, "years", len(global))
		} else {
			files = append(files, artifact.File{Path: filepath.Join(edaDir, artifact.TrendChart), Render: func(w io.Writer) error {
				return report.WriteChart(w, global)
			}})
		}
	}

	if err := p.writer.Commit(ctx, files); err != nil {
		return nil, fmt.Errorf("commit report artifacts: %w", err)
	}

	duration := p.succeed("analyze", start)
	logger.Info("analysis complete",
		"years", rep.Years,
		"countries", rep.Countries,
		"artifacts", len(files),
		"duration", duration,
	)
	return rep, nil
}

func (p *Pipeline) insightsConfig() insights.Config {
	return insights.Config{
		SplitYear:      p.cfg.DecadeSplitYear,
		BaselineStart:  p.cfg.BaselineStartYear,
		BaselineEnd:    p.cfg.BaselineEndYear,
		VolatilityTopN: p.cfg.VolatilityTopN,
		HeatmapTopN:    p.cfg.HeatmapTopN,
	}
}

// Run executes Aggregate then Analyze, stopping at the first failure. The
// metrics textfile is left to the caller, see ExportMetrics.
func (p *Pipeline) Run(ctx context.Context) error {
	if _, err := p.Aggregate(ctx); err != nil {
		return err
	}
	_, err := p.Analyze(ctx)
	return err
}

// Locate resolves every country in country_trends.json and commits
// country_locations.json. Countries the locator cannot resolve are left
// out.
func (p *Pipeline) Locate(ctx context.Context, locator domain.CountryLocator) (map[string]domain.CountryLocation, error) {
	logger := p.logger.With("stage", "locate")
	start := p.clock.Now()

	countries, err := artifact.ReadCountryTrends(p.cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	found, outcomes, err := domain.LocateCountries(ctx, countries.Countries(), locator, logger)
	for outcome, n := range outcomes {
		p.metrics.CountriesLocated.WithLabelValues(outcome).Add(float64(n))
	}
	if err != nil {
		return nil, fmt.Errorf("locate countries: %w", err)
	}

	if err := p.writer.Commit(ctx, []artifact.File{
		artifact.JSON(filepath.Join(p.cfg.OutputDir, artifact.CountryLocations), found),
	}); err != nil {
		return nil, fmt.Errorf("commit locations: %w", err)
	}

	duration := p.succeed("locate", start)
	logger.Info("countries located",
		"countries", len(countries),
		domain.LocateFound, outcomes[domain.LocateFound],
		domain.LocateEmpty, outcomes[domain.LocateEmpty],
		domain.LocateFailed, outcomes[domain.LocateFailed],
		"duration", duration,
	)
	return found, nil
}

// Publish sends the committed trend set to pub under a fresh run ID and
// returns the number of records sent.
func (p *Pipeline) Publish(ctx context.Context, pub TrendPublisher) (int, error) {
	runID := p.newID()
	logger := p.logger.With("run_id", runID, "stage", "publish")
	start := p.clock.Now()

	global, countries, err := p.readTrends()
	if err != nil {
		return 0, err
	}

	n, err := pub.PublishTrends(ctx, runID, p.clock.Now(), global, countries)
	p.metrics.RecordsPublished.Add(float64(n))
	if err != nil {
		return n, err
	}

	duration := p.succeed("publish", start)
	logger.Info("trends published", "records", n, "duration", duration)
	return n, nil
}

// ExportMetrics writes the metrics registry to the configured textfile, if
// any.
func (p *Pipeline) ExportMetrics() error {
	if p.cfg.MetricsTextfile == "" {
		return nil
	}
	if err := p.metrics.WriteTextfile(p.cfg.MetricsTextfile); err != nil {
		return err
	}
	p.logger.Debug("metrics exported", "path", p.cfg.MetricsTextfile)
	return nil
}

func (p *Pipeline) readTrends() (domain.GlobalTrends, domain.CountryTrends, error) {
	global, err := artifact.ReadGlobalTrends(p.cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}
	countries, err := artifact.ReadCountryTrends(p.cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}
	if len(global) == 0 {
		return nil, nil, fmt.Errorf("%w: %s holds no years", insights.ErrNoTrends, artifact.GlobalTrends)
	}
	return global, countries, nil
}

// succeed records the duration and completion time of a finished stage.
func (p *Pipeline) succeed(stage string, start time.Time) time.Duration {
	now := p.clock.Now()
	d := now.Sub(start)
	p.metrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	p.metrics.LastSuccess.Set(float64(now.Unix()))
	return d
}
