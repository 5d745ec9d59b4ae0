package cmd

import (
	"fmt"
	"time"

	"k8s.io/kube-openapi/pkg/validation/strfmt"

	"github.com/voluzi/memwatch/internal/config"
	"github.com/voluzi/memwatch/pkg/environ"
	"github.com/voluzi/memwatch/pkg/monitor"
)

const (
	defaultDuration = 60 * time.Second
	defaultInterval = 5 * time.Second

	envProcesses = "PROCESSES"
	envDuration  = "DURATION"
	envInterval  = "INTERVAL"
	envOutput    = "OUTPUT"
	envMerge     = "MERGE"
	envDump      = "DUMP"
	envListen    = "LISTEN"

	envUploadBuffer        = "UPLOAD_BUFFER"
	envMissingWarnInterval = "MISSING_WARN_INTERVAL"
)

// runFlags holds the raw values of the run command flags.
type runFlags struct {
	processes   []string
	profiles    []string
	duration    string
	interval    string
	output      string
	merge       []string
	dump        string
	listen      string
	noTUI       bool
	noReport    bool
	watch       bool
	saveProfile string
	export      exportFlags
}

// settings is the effective configuration of a run.
type settings struct {
	Processes []string
	Duration  time.Duration
	Interval  time.Duration
	Output    string
	Merge     []string
	Dump      string
	Listen    string
}

func (s settings) Config() monitor.Config {
	return monitor.NewConfig(s.Duration, s.Interval, s.Processes...)
}

// Profile converts s back into a profile that reproduces it.
func (s settings) Profile() config.Profile {
	return config.Profile{
		Processes: s.Processes,
		Duration:  s.Duration.String(),
		Interval:  s.Interval.String(),
		Output:    s.Output,
		Merge:     s.Merge,
		Dump:      s.Dump,
		Listen:    s.Listen,
	}
}

// resolve merges flags, environment, profile and defaults, in that order of
// precedence. changed reports whether a flag was set on the command line.
func resolve(f runFlags, changed func(string) bool, p config.Profile) (settings, error) {
	s := settings{
		Processes: firstSlice(flagSlice(changed("process"), f.processes), environ.GetStringSlice(envProcesses, nil), p.Processes),
		Output:    firstString(flagString(changed("out"), f.output), environ.GetString(envOutput, ""), p.Output),
		Merge:     firstSlice(flagSlice(changed("merge"), f.merge), environ.GetStringSlice(envMerge, nil), p.Merge),
		Dump:      firstString(flagString(changed("dump"), f.dump), environ.GetString(envDump, ""), p.Dump),
		Listen:    firstString(flagString(changed("listen"), f.listen), environ.GetString(envListen, ""), p.Listen),
	}

	var err error
	s.Duration, err = resolveDuration("duration", changed("duration"), f.duration, envDuration, p.DurationValue, defaultDuration)
	if err != nil {
		return settings{}, err
	}
	s.Interval, err = resolveDuration("interval", changed("interval"), f.interval, envInterval, p.IntervalValue, defaultInterval)
	if err != nil {
		return settings{}, err
	}
	return s, nil
}

func resolveDuration(
	name string,
	flagSet bool,
	flagValue string,
	envKey string,
	fromProfile func() (time.Duration, error),
	fallback time.Duration,
) (time.Duration, error) {
	if flagSet {
		d, err := strfmt.ParseDuration(flagValue)
		if err != nil {
			return 0, fmt.Errorf("invalid --%s %q: %w", name, flagValue, err)
		}
		return d, nil
	}
	if d, ok := environ.LookupDuration(envKey); ok {
		return d, nil
	}
	d, err := fromProfile()
	if err != nil {
		return 0, err
	}
	if d > 0 {
		return d, nil
	}
	return fallback, nil
}

func flagString(set bool, value string) string {
	if set {
		return value
	}
	return ""
}

func flagSlice(set bool, value []string) []string {
	if set {
		return value
	}
	return nil
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstSlice(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
