package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"mspro-labs/emlak-ai/internal/cleaner"
	"mspro-labs/emlak-ai/internal/models"
	"mspro-labs/emlak-ai/internal/observability"
	"mspro-labs/emlak-ai/internal/storage"
)

// Status classifies a refresh outcome.
type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty"  // the site answered but nothing survived cleaning
	StatusFailed Status = "failed" // fetching or writing the CSV failed
)

// Outcome is the result of one run. Err is set only when Status is failed.
type Outcome struct {
	RunID   string
	Status  Status
	Err     error
	Fetched int
	Kept    int
	Dropped int
}

// Fetcher returns the raw listings on one page.
type Fetcher interface {
	Fetch(ctx context.Context, page int) ([]models.RawListing, error)
}

// RunStore records each run and its listing snapshot.
type RunStore interface {
	SaveRun(ctx context.Context, run models.RefreshRun, records []models.ListingRecord) error
}

// Job fetches listings, cleans them and replaces the CSV file.
type Job struct {
	fetcher Fetcher
	cleaner *cleaner.Cleaner
	store   RunStore
	csvPath string
	pages   int
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Config wires a Job. Store may be nil; Clock defaults to the real clock.
type Config struct {
	Fetcher Fetcher
	Cleaner *cleaner.Cleaner
	Store   RunStore
	CSVPath string
	Pages   int
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

func New(cfg Config) *Job {
	if cfg.Pages < 1 {
		cfg.Pages = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Job{
		fetcher: cfg.Fetcher,
		cleaner: cfg.Cleaner,
		store:   cfg.Store,
		csvPath: cfg.CSVPath,
		pages:   cfg.Pages,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Run performs one refresh. It always leaves a valid CSV at the configured
// path, header-only when nothing was kept, and never returns an error:
// failures are reported through the Outcome.
func (j *Job) Run(ctx context.Context) Outcome {
	start := j.clock.Now()
	out := Outcome{RunID: uuid.NewString()}
	logger := j.logger.With("run_id", out.RunID)
	logger.Info("refresh started", "pages", j.pages)

	var raw []models.RawListing
	for page := 1; page <= j.pages; page++ {
		items, err := j.fetcher.Fetch(ctx, page)
		if err != nil {
			logger.Error("fetch failed", "page", page, "error", err)
			out.Err = err
			break
		}
		raw = append(raw, items...)
		if len(items) == 0 {
			break
		}
	}
	out.Fetched = len(raw)

	cleaned := j.cleaner.Clean(raw)
	out.Kept = len(cleaned.Records)
	out.Dropped = cleaned.Dropped

	if err := storage.WriteListingsCSV(j.csvPath, cleaned.Records); err != nil {
		logger.Error("csv write failed", "path", j.csvPath, "error", err)
		if out.Err == nil {
			out.Err = err
		}
	}

	switch {
	case out.Err != nil:
		out.Status = StatusFailed
	case out.Kept == 0:
		out.Status = StatusEmpty
	default:
		out.Status = StatusOK
	}

	if j.store != nil {
		run := models.RefreshRun{
			ID:         out.RunID,
			StartedAt:  start,
			FinishedAt: j.clock.Now(),
			Status:     string(out.Status),
			Fetched:    out.Fetched,
			Kept:       out.Kept,
			Dropped:    out.Dropped,
		}
		if out.Err != nil {
			run.Error = out.Err.Error()
		}
		// Recording uses its own context so a cancelled refresh still leaves a trace.
		if err := j.store.SaveRun(context.WithoutCancel(ctx), run, cleaned.Records); err != nil {
			logger.Error("failed to record run", "error", err)
		}
	}

	j.observe(out, start)
	logger.Info("refresh finished",
		"status", out.Status,
		"fetched", out.Fetched,
		"kept", out.Kept,
		"dropped", out.Dropped,
		"duration", j.clock.Since(start),
	)
	return out
}

func (j *Job) observe(out Outcome, start time.Time) {
	if j.metrics == nil {
		return
	}
	j.metrics.RefreshDuration.Observe(j.clock.Since(start).Seconds())
	j.metrics.RefreshRuns.WithLabelValues(string(out.Status)).Inc()
	j.metrics.ListingsFetched.Add(float64(out.Fetched))
	j.metrics.ListingsDropped.Add(float64(out.Dropped))
}
