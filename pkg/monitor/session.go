package monitor

import (
	"context"
	"sync"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/memwatch/pkg/statscollector"
)

// ErrNotFinished is returned by Result while a session is still sampling.
var ErrNotFinished = errors.New("monitoring session has not finished")

// Session samples a set of process names on a fixed interval for a bounded
// duration. The buffers are written only by the session's tick loop; readers
// get deep copies through Snapshot, Result or a subscription.
type Session struct {
	sampler Sampler
	clock   Clock

	// startMu serializes Start calls so only one loop ever runs.
	startMu sync.Mutex

	mu         sync.RWMutex
	state      State
	cfg        Config
	id         string
	startedAt  time.Time
	tick       int
	collectors map[string]*statscollector.Collector
	stop       chan struct{}
	done       chan struct{}

	subMu   sync.Mutex
	subs    map[int]*subscriber
	nextSub int
}

func New(opts ...Option) *Session {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &Session{
		sampler: options.sampler(),
		clock:   options.Clock,
		state:   Idle,
		subs:    make(map[int]*subscriber),
	}
}

// Start validates cfg and begins a new session. A running session is stopped
// first and its in-flight tick is allowed to finish; buffers of any earlier
// session are discarded. On validation failure nothing changes.
func (s *Session) Start(ctx context.Context, cfg Config) error {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.Stop()
	s.waitLoop()

	collectors := make(map[string]*statscollector.Collector, len(cfg.Names))
	for _, name := range cfg.Names {
		collectors[name] = statscollector.NewCollector(name)
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	s.mu.Lock()
	s.state = Running
	s.cfg = cfg
	s.id = cfg.ID()
	startedAt := s.clock.Now()
	s.startedAt = startedAt
	s.tick = 0
	s.collectors = collectors
	s.stop = stop
	s.done = done
	s.mu.Unlock()

	log.WithFields(map[string]interface{}{
		"session":   s.id,
		"processes": cfg.Names,
		"duration":  cfg.Duration,
		"interval":  cfg.Interval,
		"ticks":     cfg.ExpectedTicks(),
	}).Info("monitoring session started")

	go s.loop(ctx, cfg, startedAt, stop, done)
	return nil
}

// Stop ends a running session cooperatively. A tick already in progress
// completes and keeps its samples. It is a no-op unless the session is running.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return
	}
	s.state = Stopped
	close(s.stop)
	log.WithFields(map[string]interface{}{
		"session": s.id,
		"tick":    s.tick,
	}).Info("monitoring session stopped")
}

// Wait blocks until the tick loop has exited or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) waitLoop() {
	_ = s.Wait(context.Background())
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a consistent copy of the current buffers. An Idle session
// yields a snapshot without series.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Result returns the final buffers once the session completed or was stopped
// and its loop has exited.
func (s *Session) Result() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.state.Terminal() {
		return Snapshot{}, errors.WithDetails(ErrNotFinished, "state", s.state.String())
	}
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return Snapshot{}, errors.WithDetails(ErrNotFinished, "state", "finishing")
		}
	}
	return s.snapshotLocked(), nil
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		State:     s.state,
		Config:    s.cfg,
		Tick:      s.tick,
		StartedAt: s.startedAt,
		TakenAt:   s.clock.Now(),
		Series:    make(map[string]statscollector.Series, len(s.collectors)),
	}
	for name, c := range s.collectors {
		snap.Series[name] = c.Snapshot()
	}
	return snap
}

// loop fires tick n at start + n*interval. Deadlines are fixed up front so the
// time spent sampling does not push later ticks back; a tick that overruns its
// slot makes the next one fire immediately.
func (s *Session) loop(ctx context.Context, cfg Config, start time.Time, stop, done chan struct{}) {
	defer close(done)
	defer func() {
		s.publish(s.Snapshot())
	}()

	// An in-flight tick must finish even if ctx is cancelled meanwhile.
	sampleCtx := context.WithoutCancel(ctx)

	for n := 1; ; n++ {
		deadline := start.Add(time.Duration(n) * cfg.Interval)
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.Stop()
			return
		case <-s.clock.After(deadline.Sub(s.clock.Now())):
		}

		select {
		case <-stop:
			return
		default:
		}

		s.runTick(sampleCtx, cfg, n)

		if time.Duration(n)*cfg.Interval >= cfg.Duration {
			s.complete(n)
			return
		}
	}
}

func (s *Session) runTick(ctx context.Context, cfg Config, n int) {
	now := s.clock.Now()
	totals, err := s.sampler.Sample(ctx, cfg.Names)
	if err != nil {
		log.WithField("tick", n).Warnf("sampling failed, recording zero usage: %v", err)
	}

	s.mu.Lock()
	for _, name := range cfg.Names {
		s.collectors[name].Append(statscollector.Sample{
			Timestamp: now,
			Bytes:     totals[name],
		})
	}
	s.tick = n
	snap := s.snapshotLocked()
	s.mu.Unlock()

	log.WithFields(map[string]interface{}{
		"session": snap.SessionID,
		"tick":    n,
	}).Debug("tick recorded")

	s.publish(snap)
}

func (s *Session) complete(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return
	}
	s.state = Completed
	log.WithFields(map[string]interface{}{
		"session": s.id,
		"ticks":   n,
	}).Info("monitoring session completed")
}
