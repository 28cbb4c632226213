package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var istanbul = time.FixedZone("TRT", 3*60*60)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("03:30")
	require.NoError(t, err)
	assert.Equal(t, 3, h)
	assert.Equal(t, 30, m)

	for _, bad := range []string{"", "3", "25:00", "12:61", "noon"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestNext(t *testing.T) {
	d, err := NewDaily("03:00", istanbul, clockwork.NewFakeClock(), func(context.Context) {}, discardLogger())
	require.NoError(t, err)

	before := time.Date(2026, 10, 17, 1, 0, 0, 0, istanbul)
	assert.Equal(t, time.Date(2026, 10, 17, 3, 0, 0, 0, istanbul), d.Next(before))

	exactly := time.Date(2026, 10, 17, 3, 0, 0, 0, istanbul)
	assert.Equal(t, time.Date(2026, 10, 18, 3, 0, 0, 0, istanbul), d.Next(exactly))

	after := time.Date(2026, 10, 17, 22, 15, 0, 0, istanbul)
	assert.Equal(t, time.Date(2026, 10, 18, 3, 0, 0, 0, istanbul), d.Next(after))

	// Month rollover, input in another zone.
	utc := time.Date(2026, 10, 31, 23, 0, 0, 0, time.UTC) // 02:00 on Nov 1 in TRT
	assert.Equal(t, time.Date(2026, 11, 1, 3, 0, 0, 0, istanbul), d.Next(utc))
}

func TestRunFiresDailyAndStops(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 2, 0, 0, 0, istanbul))
	var runs atomic.Int32
	fired := make(chan struct{}, 4)

	d, err := NewDaily("03:00", istanbul, clock, func(context.Context) {
		runs.Add(1)
		fired <- struct{}{}
	}, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(59 * time.Minute)
	assert.Equal(t, int32(0), runs.Load())

	clock.Advance(time.Minute)
	waitFired(t, fired)
	assert.Equal(t, int32(1), runs.Load())

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(24 * time.Hour)
	waitFired(t, fired)
	assert.Equal(t, int32(2), runs.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestRunOnStart(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 17, 12, 0, 0, 0, istanbul))
	fired := make(chan struct{}, 1)

	d, err := NewDaily("03:00", istanbul, clock, func(context.Context) { fired <- struct{}{} }, discardLogger())
	require.NoError(t, err)
	d.RunOnStart(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()

	waitFired(t, fired)
}

func waitFired(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not run")
	}
}
