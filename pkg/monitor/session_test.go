package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluzi/memwatch/pkg/procsampler"
)

const mib = 1024 * 1024

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSession(table *procsampler.MockTable) (*Session, *FakeClock) {
	clock := NewFakeClock(epoch)
	s := New(
		WithClock(clock),
		WithSampler(procsampler.New(procsampler.WithTable(table))),
	)
	return s, clock
}

// advanceTicks fires n ticks, waiting for the loop to arm each timer first.
func advanceTicks(clock *FakeClock, interval time.Duration, n int) {
	for i := 0; i < n; i++ {
		clock.BlockUntil(1)
		clock.Advance(interval)
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestSession_CompletesWithExpectedTicks(t *testing.T) {
	table := procsampler.NewMockTable(&procsampler.MockProcess{Pid: 1, Comm: "P", Resident: 100 * mib})
	s, clock := newTestSession(table)

	require.NoError(t, s.Start(context.Background(), NewConfig(10*time.Second, 5*time.Second, "P")))
	assert.Equal(t, Running, s.State())

	advanceTicks(clock, 5*time.Second, 2)
	waitDone(t, s)

	assert.Equal(t, Completed, s.State())
	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Tick)

	series := res.Series["P"]
	require.Equal(t, 2, series.Len())
	assert.Equal(t, epoch.Add(5*time.Second), series.Samples[0].Timestamp)
	assert.Equal(t, epoch.Add(10*time.Second), series.Samples[1].Timestamp)
	assert.Equal(t, []float64{100, 100}, series.Values())

	sum := series.Summary()
	assert.Equal(t, 100.0, sum.Max)
	assert.Equal(t, 100.0, sum.Min)
	assert.Equal(t, 100.0, sum.Mean)
	assert.Zero(t, sum.Sigma3)
}

func TestSession_TickCountMatchesDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		interval time.Duration
		ticks    int
	}{
		{duration: 5 * time.Second, interval: 5 * time.Second, ticks: 1},
		{duration: 60 * time.Second, interval: 5 * time.Second, ticks: 12},
		{duration: 7 * time.Second, interval: 2 * time.Second, ticks: 4},
	}

	for _, test := range tests {
		table := procsampler.NewMockTable(&procsampler.MockProcess{Pid: 1, Comm: "P", Resident: mib})
		s, clock := newTestSession(table)

		cfg := NewConfig(test.duration, test.interval, "P")
		require.Equal(t, test.ticks, cfg.ExpectedTicks())
		require.NoError(t, s.Start(context.Background(), cfg))

		advanceTicks(clock, test.interval, test.ticks)
		waitDone(t, s)

		res, err := s.Result()
		require.NoError(t, err)
		assert.Equal(t, test.ticks, res.Series["P"].Len())
		assert.Equal(t, Completed, res.State)
		assert.Equal(t, 1.0, res.Progress())
	}
}

func TestSession_RejectsInvalidConfig(t *testing.T) {
	table := procsampler.NewMockTable()
	s, _ := newTestSession(table)

	err := s.Start(context.Background(), NewConfig(5*time.Second, 10*time.Second, "P"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	assert.Equal(t, Idle, s.State())
	assert.Empty(t, s.Snapshot().Series)

	_, err = s.Result()
	assert.True(t, errors.Is(err, ErrNotFinished))
}

func TestSession_RejectionKeepsPreviousBuffers(t *testing.T) {
	table := procsampler.NewMockTable(&procsampler.MockProcess{Pid: 1, Comm: "P", Resident: mib})
	s, clock := newTestSession(table)

	require.NoError(t, s.Start(context.Background(), NewConfig(5*time.Second, 5*time.Second, "P")))
	advanceTicks(clock, 5*time.Second, 1)
	waitDone(t, s)

	err := s.Start(context.Background(), NewConfig(0, 5*time.Second, "P"))
	require.Error(t, err)
	assert.Equal(t, Completed, s.State())
	assert.Equal(t, 1, s.Snapshot().Series["P"].Len())
}

func TestSession_MissingProcessRecordsZeros(t *testing.T) {
	table := procsampler.NewMockTable(&procsampler.MockProcess{Pid: 1, Comm: "P", Resident: mib})
	s, clock := newTestSession(table)

	require.NoError(t, s.Start(context.Background(), NewConfig(15*time.Second, 5*time.Second, "P", "Q")))
	advanceTicks(clock, 5*time.Second, 3)
	waitDone(t, s)

	res, err := s.Result()
	require.NoError(t, err)
	q := res.Series["Q"]
	require.Equal(t, 3, q.Len())
	for _, sample := range q.Samples {
		assert.Zero(t, sample.Bytes)
	}
	sum := q.Summary()
	assert.Zero(t, sum.Max)
	assert.Zero(t, sum.Min)
	assert.Zero(t, sum.Mean)
	assert.Zero(t, sum.Sigma3)
}

func TestSession_StopAfterTwoTicks(t *testing.T) {
	table := procsampler.NewMockTable(&procsampler.MockProcess{Pid: 1, Comm: "P", Resident: mib})
	s, clock := newTestSession(table)

	require.NoError(t, s.Start(context.Background(), NewConfig(25*time.Second, 5*time.Second, "P", "Q")))
	advanceTicks(clock, 5*time.Second, 2)
	clock.BlockUntil(1)

	s.Stop()
	assert.Equal(t, Stopped, s.State())
	waitDone(t, s)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, Stopped, res.State)
	assert.Equal(t, 2, res.Series["P"].Len())
	assert.Equal(t, 2, res.Series["Q"].Len())

	// Stop is idempotent once terminal.
	s.Stop()
	assert.Equal(t, Stopped, s.State())
}

type blockingSampler struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSampler) Sample(_ context.Context, names []string) (map[string]uint64, error) {
	b.entered <- struct{}{}
	<-b.release
	totals := make(map[string]uint64, len(names))
	for _, name := range names {
		totals[name] = 7 * mib
	}
	return totals, nil
}

func TestSession_StopDoesNotInterruptInFlightTick(t *testing.T) {
	clock := NewFakeClock(epoch)
	sampler := &blockingSampler{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(WithClock(clock), WithSampler(sampler))

	require.NoError(t, s.Start(context.Background(), NewConfig(20*time.Second, 5*time.Second, "P")))
	clock.BlockUntil(1)
	clock.Advance(5 * time.Second)

	<-sampler.entered
	s.Stop()
	close(sampler.release)
	waitDone(t, s)

	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, Stopped, res.State)
	require.Equal(t, 1, res.Series["P"].Len())
	assert.Equal(t, uint64(7*mib), res.Series["P"].Samples[0].Bytes)
}

// advancingSampler moves the clock forward while sampling, like a slow
// process table would.
type advancingSampler struct {
	clock *FakeClock
	took  time.Duration
}

func (a *advancingSampler) Sample(_ context.Context, names []string) (map[string]uint64, error) {
	a.clock.Advance(a.took)
	totals := make(map[string]uint64, len(names))
	for _, name := range names {
		totals[name] = mib
	}
	return totals, nil
}

func TestSession_SlowSamplingDoesNotDelayLaterTicks(t *testing.T) {
	tests := []struct {
		name     string
		took     time.Duration
		interval time.Duration
		ticks    int
	}{
		{name: "sampling takes a third of the interval", took: 300 * time.Millisecond, interval: time.Second, ticks: 4},
		{name: "sampling takes almost the whole interval", took: 900 * time.Millisecond, interval: time.Second, ticks: 3},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			clock := NewFakeClock(epoch)
			s := New(WithClock(clock), WithSampler(&advancingSampler{clock: clock, took: test.took}))

			duration := time.Duration(test.ticks) * test.interval
			require.NoError(t, s.Start(context.Background(), NewConfig(duration, test.interval, "P")))

			// Each wait only covers what is left of the slot after sampling.
			clock.BlockUntil(1)
			clock.Advance(test.interval)
			for i := 1; i < test.ticks; i++ {
				clock.BlockUntil(1)
				clock.Advance(test.interval - test.took)
			}
			waitDone(t, s)

			res, err := s.Result()
			require.NoError(t, err)
			assert.Equal(t, Completed, res.State)
			series := res.Series["P"]
			require.Equal(t, test.ticks, series.Len())
			for i, sample := range series.Samples {
				assert.Equal(t, epoch.Add(time.Duration(i+1)*test.interval), sample.Timestamp, "tick %d", i+1)
			}
		})
	}
}

func TestSession_ContextCancellationStops(t *testing.T) {
	table := procsampler.NewMockTable(&procsampler.MockProcess{Pid: 1, Comm: "P", Resident: mib})
	s, clock := newTestSession(table)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx, NewConfig(25*time.Second, 5*time.Second, "P")))
	advanceTicks(clock, 5*time.Second, 1)
	clock.BlockUntil(1)

	cancel()
	waitDone(t, s)
	assert.Equal(t, Stopped, s.State())
	assert.Equal(t, 1, s.Snapshot().Series["P"].Len())
}

func TestSession_RestartDiscardsBuffers(t *testing.T) {
	table := procsampler.NewMockTable(
		&procsampler.MockProcess{Pid: 1, Comm: "P", Resident: mib},
		&procsampler.MockProcess{Pid: 2, Comm: "R", Resident: 2 * mib},
	)
	s, clock := newTestSession(table)

	require.NoError(t, s.Start(context.Background(), NewConfig(25*time.Second, 5*time.Second, "P")))
	advanceTicks(clock, 5*time.Second, 2)
	clock.BlockUntil(1)

	// Starting again while running stops the first session.
	require.NoError(t, s.Start(context.Background(), NewConfig(10*time.Second, 5*time.Second, "R")))
	snap := s.Snapshot()
	assert.Equal(t, Running, snap.State)
	assert.NotContains(t, snap.Series, "P")
	require.Contains(t, snap.Series, "R")
	assert.Zero(t, snap.Series["R"].Len())

	// The abandoned timer of the first loop is still registered.
	clock.BlockUntil(2)
	clock.Advance(5 * time.Second)
	advanceTicks(clock, 5*time.Second, 1)
	waitDone(t, s)
	res, err := s.Result()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Series["R"].Len())
}

func TestSession_PublishesEveryTickAndTerminalState(t *testing.T) {
	table := procsampler.NewMockTable(&procsampler.MockProcess{Pid: 1, Comm: "P", Resident: mib})
	s, clock := newTestSession(table)

	updates, unsubscribe := s.Subscribe(16)
	defer unsubscribe()

	require.NoError(t, s.Start(context.Background(), NewConfig(15*time.Second, 5*time.Second, "P")))
	advanceTicks(clock, 5*time.Second, 3)
	waitDone(t, s)

	var got []Snapshot
	for len(got) < 4 {
		select {
		case snap := <-updates:
			got = append(got, snap)
		case <-time.After(time.Second):
			t.Fatalf("expected 4 snapshots, got %d", len(got))
		}
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, i+1, got[i].Tick)
		assert.Equal(t, i+1, got[i].Series["P"].Len())
	}
	assert.Equal(t, Completed, got[3].State)
	assert.Equal(t, 3, got[3].Series["P"].Len())
}

func TestSession_SlowSubscriberGetsLatest(t *testing.T) {
	table := procsampler.NewMockTable(&procsampler.MockProcess{Pid: 1, Comm: "P", Resident: mib})
	s, clock := newTestSession(table)

	updates, unsubscribe := s.Subscribe(1)
	defer unsubscribe()

	require.NoError(t, s.Start(context.Background(), NewConfig(20*time.Second, 5*time.Second, "P")))
	advanceTicks(clock, 5*time.Second, 4)
	waitDone(t, s)

	snap := <-updates
	assert.Equal(t, Completed, snap.State)
	assert.Equal(t, 4, snap.Series["P"].Len())
}

func TestSession_PublishedSnapshotsAreConsistent(t *testing.T) {
	table := procsampler.NewMockTable(
		&procsampler.MockProcess{Pid: 1, Comm: "A", Resident: mib},
		&procsampler.MockProcess{Pid: 2, Comm: "B", Resident: mib},
		&procsampler.MockProcess{Pid: 3, Comm: "C", Resident: mib},
	)
	s, clock := newTestSession(table)

	updates, unsubscribe := s.Subscribe(64)
	defer unsubscribe()

	require.NoError(t, s.Start(context.Background(), NewConfig(50*time.Second, 5*time.Second, "A", "B", "C")))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for snap := range updates {
			lengths := map[int]struct{}{}
			for _, series := range snap.Series {
				lengths[series.Len()] = struct{}{}
			}
			assert.Len(t, lengths, 1, "partial tick observed")
			if snap.State.Terminal() {
				return
			}
		}
	}()

	advanceTicks(clock, 5*time.Second, 10)
	waitDone(t, s)
	wg.Wait()
}

func TestSession_SamplingErrorRecordsZeros(t *testing.T) {
	table := procsampler.NewMockTable(&procsampler.MockProcess{Pid: 1, Comm: "P", Resident: mib})
	table.SetError(errors.New("boom"))
	s, clock := newTestSession(table)

	require.NoError(t, s.Start(context.Background(), NewConfig(10*time.Second, 5*time.Second, "P")))
	advanceTicks(clock, 5*time.Second, 1)
	clock.BlockUntil(1)
	table.SetError(nil)
	advanceTicks(clock, 5*time.Second, 1)
	waitDone(t, s)

	res, err := s.Result()
	require.NoError(t, err)
	require.Equal(t, 2, res.Series["P"].Len())
	assert.Zero(t, res.Series["P"].Samples[0].Bytes)
	assert.Equal(t, uint64(mib), res.Series["P"].Samples[1].Bytes)
}

func TestSession_ResultWhileRunning(t *testing.T) {
	table := procsampler.NewMockTable()
	s, _ := newTestSession(table)

	require.NoError(t, s.Start(context.Background(), NewConfig(10*time.Second, 5*time.Second, "P")))
	_, err := s.Result()
	assert.True(t, errors.Is(err, ErrNotFinished))
	s.Stop()
	waitDone(t, s)
}
