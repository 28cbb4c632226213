package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mspro-labs/emlak-ai/internal/cleaner"
	"mspro-labs/emlak-ai/internal/models"
	"mspro-labs/emlak-ai/internal/observability"
	"mspro-labs/emlak-ai/internal/storage"
)

// --- mocks ---

type pageFetcher struct {
	pages map[int][]models.RawListing
	err   error
	calls []int
}

func (f *pageFetcher) Fetch(_ context.Context, page int) ([]models.RawListing, error) {
	f.calls = append(f.calls, page)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[page], nil
}

type recordingStore struct {
	runs    []models.RefreshRun
	records [][]models.ListingRecord
	err     error
}

func (s *recordingStore) SaveRun(_ context.Context, run models.RefreshRun, records []models.ListingRecord) error {
	s.runs = append(s.runs, run)
	s.records = append(s.records, records)
	return s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJob(t *testing.T, f Fetcher, store RunStore, pages int) (*Job, string, *observability.Metrics) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listings.csv")
	metrics := observability.NewMetricsForTesting()
	job := New(Config{
		Fetcher: f,
		Cleaner: cleaner.New(discardLogger()),
		Store:   store,
		CSVPath: path,
		Pages:   pages,
		Clock:   clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)),
		Logger:  discardLogger(),
		Metrics: metrics,
	})
	return job, path, metrics
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunWritesCleanedCSV(t *testing.T) {
	f := &pageFetcher{pages: map[int][]models.RawListing{
		1: {
			{Title: "Moda 3+1", PriceText: "1.234.567 TL", LocationText: "İstanbul/Kadıköy"},
			{Title: "Fiyatsız", PriceText: "", LocationText: "İstanbul/Kadıköy"},
			{Title: "Konumsuz", PriceText: "900.000 TL", LocationText: "İstanbul"},
		},
	}}
	store := &recordingStore{}
	job, path, metrics := newJob(t, f, store, 1)

	out := job.Run(context.Background())

	assert.Equal(t, StatusOK, out.Status)
	assert.NoError(t, out.Err)
	assert.Equal(t, 3, out.Fetched)
	assert.Equal(t, 1, out.Kept)
	assert.Equal(t, 2, out.Dropped)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "price,region,subregion\n1234567,İstanbul,Kadıköy\n", readFile(t, path))

	require.Len(t, store.runs, 1)
	assert.Equal(t, out.RunID, store.runs[0].ID)
	assert.Equal(t, "ok", store.runs[0].Status)
	assert.Len(t, store.records[0], 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshRuns.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ListingsFetched))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ListingsDropped))
}

func TestRunFetchFailureStillWritesCSV(t *testing.T) {
	f := &pageFetcher{err: errors.New("connection refused")}
	store := &recordingStore{}
	job, path, metrics := newJob(t, f, store, 1)

	out := job.Run(context.Background())

	assert.Equal(t, StatusFailed, out.Status)
	assert.EqualError(t, out.Err, "connection refused")
	assert.Equal(t, "price,region,subregion\n", readFile(t, path))

	back, err := storage.ReadListingsCSV(path)
	require.NoError(t, err)
	assert.Empty(t, back)

	require.Len(t, store.runs, 1)
	assert.Equal(t, "failed", store.runs[0].Status)
	assert.Equal(t, "connection refused", store.runs[0].Error)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RefreshRuns.WithLabelValues("failed")))
}

func TestRunEmptyPageIsEmptyNotFailed(t *testing.T) {
	f := &pageFetcher{pages: map[int][]models.RawListing{}}
	job, path, _ := newJob(t, f, nil, 1)

	out := job.Run(context.Background())

	assert.Equal(t, StatusEmpty, out.Status)
	assert.NoError(t, out.Err)
	assert.Equal(t, "price,region,subregion\n", readFile(t, path))
}

func TestRunStopsPagingOnEmptyPage(t *testing.T) {
	f := &pageFetcher{pages: map[int][]models.RawListing{
		1: {{Title: "a", PriceText: "1.000.000 TL", LocationText: "İstanbul/Kadıköy"}},
		2: nil,
		3: {{Title: "c", PriceText: "3.000.000 TL", LocationText: "İstanbul/Beşiktaş"}},
	}}
	job, _, _ := newJob(t, f, nil, 3)

	out := job.Run(context.Background())

	assert.Equal(t, []int{1, 2}, f.calls)
	assert.Equal(t, 1, out.Kept)
}

func TestRunCSVWriteFailure(t *testing.T) {
	f := &pageFetcher{pages: map[int][]models.RawListing{}}
	job, _, _ := newJob(t, f, nil, 1)

	// A regular file where the output directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	job.csvPath = filepath.Join(blocker, "listings.csv")

	out := job.Run(context.Background())
	assert.Equal(t, StatusFailed, out.Status)
	assert.Error(t, out.Err)
}

func TestRunStoreErrorDoesNotFailRefresh(t *testing.T) {
	f := &pageFetcher{pages: map[int][]models.RawListing{
		1: {{Title: "a", PriceText: "1.000.000 TL", LocationText: "İstanbul/Kadıköy"}},
	}}
	job, _, _ := newJob(t, f, &recordingStore{err: errors.New("disk full")}, 1)

	out := job.Run(context.Background())
	assert.Equal(t, StatusOK, out.Status)
}
