package procsampler

import (
	"context"
	"sort"

	"emperror.dev/errors"
	"github.com/jellydator/ttlcache/v3"
	log "github.com/sirupsen/logrus"
)

// Sampler sums resident memory across every process sharing a tracked name.
// Names are read from the process table on every call, so a process that
// execs into another image is attributed to its new name on the next tick.
type Sampler struct {
	table ProcessTable

	// missing remembers names already reported as having no process.
	missing *ttlcache.Cache[string, struct{}]
}

func New(opts ...Option) *Sampler {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	s := &Sampler{table: options.Table}
	if options.MissingWarnInterval > 0 {
		s.missing = ttlcache.New(
			ttlcache.WithTTL[string, struct{}](options.MissingWarnInterval),
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		)
	}
	return s
}

// Sample enumerates the process table once and returns, for every name, the
// summed RSS in bytes of all processes with that exact name. Processes that
// exit, deny access or cannot be read mid-scan are skipped, so a name with no
// readable match reports 0. An error is only returned when the table itself
// cannot be listed; the returned map still holds a 0 entry per name.
func (s *Sampler) Sample(ctx context.Context, names []string) (map[string]uint64, error) {
	totals := make(map[string]uint64, len(names))
	for _, name := range names {
		totals[name] = 0
	}

	procs, err := s.table.Processes(ctx)
	if err != nil {
		return totals, errors.WrapIf(err, "failed to list processes")
	}

	matched := make(map[string]int, len(names))
	for _, p := range procs {
		name, err := p.Name(ctx)
		if err != nil {
			continue
		}
		if _, tracked := totals[name]; !tracked {
			continue
		}

		rss, err := p.RSS(ctx)
		if err != nil {
			log.WithFields(map[string]interface{}{
				"pid":  p.PID(),
				"name": name,
			}).Tracef("skipping process: %v", err)
			continue
		}
		totals[name] += rss
		matched[name]++
	}

	s.reportMissing(names, matched)
	return totals, nil
}

func (s *Sampler) reportMissing(names []string, matched map[string]int) {
	if s.missing != nil {
		s.missing.DeleteExpired()
	}
	for _, name := range names {
		if matched[name] > 0 {
			s.forgetMissing(name)
			continue
		}
		if s.missing != nil {
			if item := s.missing.Get(name); item != nil {
				continue
			}
			s.missing.Set(name, struct{}{}, ttlcache.DefaultTTL)
		}
		log.WithField("name", name).Warn("no running process matches, recording zero usage")
	}
}

func (s *Sampler) forgetMissing(name string) {
	if s.missing != nil {
		s.missing.Delete(name)
	}
}

// Names returns the sorted set of process names currently running.
func (s *Sampler) Names(ctx context.Context) ([]string, error) {
	procs, err := s.table.Processes(ctx)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to list processes")
	}

	seen := make(map[string]struct{}, len(procs))
	for _, p := range procs {
		name, err := p.Name(ctx)
		if err != nil || name == "" {
			continue
		}
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
