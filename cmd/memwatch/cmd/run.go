package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"emperror.dev/errors"
	"github.com/AlecAivazis/survey/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/voluzi/memwatch/internal/config"
	"github.com/voluzi/memwatch/internal/dump"
	"github.com/voluzi/memwatch/internal/tui"
	"github.com/voluzi/memwatch/pkg/environ"
	"github.com/voluzi/memwatch/pkg/monitor"
	"github.com/voluzi/memwatch/pkg/procsampler"
	"github.com/voluzi/memwatch/pkg/report"
	"github.com/voluzi/memwatch/pkg/server"
)

const updateBuffer = 16

var errNoProcesses = errors.New("no processes selected: use --process, --profile or the PROCESSES environment variable")

var (
	runOpts runFlags

	newSampler = func() *procsampler.Sampler {
		return procsampler.New(procsampler.WithMissingWarnInterval(
			environ.GetDuration(envMissingWarnInterval, procsampler.DefaultMissingWarnInterval),
		))
	}
	fallbackDumpDir = os.TempDir
	askOne          = survey.AskOne
	interactive     = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	}
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor processes for a fixed duration and export a report",
	Long: `Samples the resident memory of every selected process name on a fixed interval.
Processes sharing a name are summed. When the session completes or is stopped,
a summary is printed and an Excel report with charts is exported.`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVarP(&runOpts.processes, "process", "p", nil, "Process name to monitor. Repeatable (env PROCESSES).")
	f.StringSliceVar(&runOpts.profiles, "profile", nil, "YAML or TOML session profile. Later files override earlier ones.")
	f.StringVar(&runOpts.duration, "duration", defaultDuration.String(), "Session duration, e.g. 90s, 10m, 2h, 1d (env DURATION).")
	f.StringVar(&runOpts.interval, "interval", defaultInterval.String(), "Sampling interval (env INTERVAL).")
	f.StringVar(&runOpts.output, "out", "", "Report destination directory or gs://bucket/prefix (env OUTPUT, defaults to the current directory).")
	f.StringSliceVar(&runOpts.merge, "merge", nil, "Processes to plot on the combined chart (env MERGE).")
	f.StringVar(&runOpts.dump, "dump", "", "Write the session to this JSON file. A .gz suffix compresses it (env DUMP).")
	f.StringVar(&runOpts.listen, "listen", "", "Serve status and metrics on this address, e.g. :8080 (env LISTEN).")
	f.BoolVar(&runOpts.noTUI, "no-tui", false, "Log each tick instead of showing the live view.")
	f.BoolVar(&runOpts.noReport, "no-report", false, "Do not export a report.")
	f.BoolVar(&runOpts.watch, "watch-profile", false, "Restart the session whenever a profile file changes. Implies --no-tui.")
	f.StringVar(&runOpts.saveProfile, "save-profile", "", "Save the effective settings to this YAML or TOML file.")
	runOpts.export.register(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runSessions(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if runOpts.watch && len(runOpts.profiles) == 0 {
		return errors.New("--watch-profile requires --profile")
	}

	var profile config.Profile
	if len(runOpts.profiles) > 0 {
		var err error
		if profile, err = config.Load(runOpts.profiles...); err != nil {
			return err
		}
	}

	s, err := resolve(runOpts, cmd.Flags().Changed, profile)
	if err != nil {
		return err
	}
	exportOpts, err := runOpts.export.options()
	if err != nil {
		return err
	}

	sampler := newSampler()
	if len(s.Processes) == 0 {
		if !interactive() {
			return errNoProcesses
		}
		if s.Processes, err = pickProcesses(ctx, sampler); err != nil {
			return err
		}
	}
	if err := s.Config().Validate(); err != nil {
		return err
	}

	if runOpts.saveProfile != "" {
		if err := config.Save(runOpts.saveProfile, s.Profile()); err != nil {
			return errors.WrapIfWithDetails(err, "failed to save profile", "path", runOpts.saveProfile)
		}
		log.WithField("path", runOpts.saveProfile).Info("profile saved")
	}

	session := monitor.New(monitor.WithSampler(sampler))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Infof("received signal %s, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.Listen != "" {
		srv, err := newStatusServer(session, s.Listen)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Start(); err != nil {
				log.WithError(err).Error("status server failed")
			}
		}()
		defer func() {
			if err := srv.Stop(); err != nil {
				log.WithError(err).Warn("failed to stop status server")
			}
		}()
	}

	r := &runner{
		session:    session,
		out:        cmd.OutOrStdout(),
		tui:        !runOpts.noTUI && !runOpts.watch && interactive(),
		report:     !runOpts.noReport,
		exportOpts: exportOpts,
	}
	if runOpts.watch {
		return r.watch(ctx, s, cmd.Flags().Changed)
	}
	return r.run(ctx, s)
}

// pickProcesses asks the user to choose among the running process names.
func pickProcesses(ctx context.Context, sampler *procsampler.Sampler) ([]string, error) {
	names, err := sampler.Names(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errNoProcesses
	}

	var selected []string
	prompt := &survey.MultiSelect{
		Message:  "Select processes to monitor:",
		Options:  names,
		PageSize: 15,
	}
	if err := askOne(prompt, &selected, survey.WithValidator(survey.MinItems(1))); err != nil {
		return nil, err
	}
	return selected, nil
}

func newStatusServer(session *monitor.Session, addr string) (*server.Server, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid listen port %q: %w", portStr, err)
	}
	return server.New(session, server.WithHost(host), server.WithPort(port)), nil
}

// runner drives sessions and handles their results.
type runner struct {
	session    *monitor.Session
	out        io.Writer
	tui        bool
	report     bool
	exportOpts []report.Option
}

// run executes one session to its end and exports the result. The export is
// not cancelled by a stop signal.
func (r *runner) run(ctx context.Context, s settings) error {
	updates, unsubscribe := r.session.Subscribe(updateBuffer)
	defer unsubscribe()

	if err := r.session.Start(ctx, s.Config()); err != nil {
		return err
	}

	if r.tui {
		if err := tui.Run(ctx, r.session, updates); err != nil {
			log.WithError(err).Error("live view failed, stopping session")
			r.session.Stop()
		}
	} else {
		logTicks(updates)
	}

	if err := r.session.Wait(context.Background()); err != nil {
		return err
	}
	snap, err := r.session.Result()
	if err != nil {
		return err
	}
	return r.finish(context.WithoutCancel(ctx), s, snap)
}

// finish prints the summary, writes the requested dump and exports the report.
// Every step runs even when an earlier one fails. When the export fails and no
// dump was written, the session is saved to fallbackDumpDir so the report can
// be regenerated with the report command.
func (r *runner) finish(ctx context.Context, s settings, snap monitor.Snapshot) error {
	in := report.NewInput(snap, s.Merge)
	printSummary(r.out, in)

	var errs []error
	saved := ""
	if s.Dump != "" {
		if err := dump.Write(s.Dump, snap, s.Merge); err != nil {
			errs = append(errs, errors.WrapIfWithDetails(err, "failed to write session dump", "path", s.Dump))
		} else {
			saved = s.Dump
			log.WithField("path", s.Dump).Info("session dump written")
		}
	}

	if !r.report {
		return errors.Combine(errs...)
	}
	if err := exportReport(ctx, s.Output, in, r.exportOpts...); err != nil {
		errs = append(errs, err)
		if saved == "" {
			saved = saveFallbackDump(snap, s.Merge)
		}
		if saved != "" {
			log.WithField("path", saved).Warnf("report export failed, retry with: memwatch report --from %s", saved)
		}
	}
	return errors.Combine(errs...)
}

// saveFallbackDump writes snap next to other temporary files and returns the
// path, or an empty string when even that fails.
func saveFallbackDump(snap monitor.Snapshot, merge []string) string {
	path := filepath.Join(fallbackDumpDir(), "memwatch-"+snap.SessionID+".json.gz")
	if err := dump.Write(path, snap, merge); err != nil {
		log.WithError(err).WithField("path", path).Error("failed to save session, recorded samples are lost")
		return ""
	}
	return path
}

// watch runs sessions until ctx is done. A profile change stops the running
// session, exports it and starts a new one with the reloaded settings.
func (r *runner) watch(ctx context.Context, s settings, changed func(string) bool) error {
	profiles := make(chan config.Profile, 1)
	go func() {
		err := config.Watch(ctx, func(p config.Profile) {
			select {
			case <-profiles:
			default:
			}
			profiles <- p
			r.session.Stop()
		}, runOpts.profiles...)
		if err != nil {
			log.WithError(err).Error("profile watcher stopped")
		}
	}()

	for {
		if err := r.run(ctx, s); err != nil {
			log.WithError(err).Error("monitoring session failed")
		}
		if ctx.Err() != nil {
			return nil
		}

		log.Info("waiting for profile changes")
		next, ok := nextSettings(ctx, profiles, changed)
		if !ok {
			return nil
		}
		s = next
	}
}

// nextSettings waits for a profile that resolves to a valid configuration.
func nextSettings(ctx context.Context, profiles <-chan config.Profile, changed func(string) bool) (settings, bool) {
	for {
		select {
		case <-ctx.Done():
			return settings{}, false
		case p := <-profiles:
			s, err := resolve(runOpts, changed, p)
			if err == nil {
				err = s.Config().Validate()
			}
			if err != nil {
				log.WithError(err).Warn("ignoring profile change")
				continue
			}
			return s, true
		}
	}
}

// logTicks logs every published snapshot until the session ends.
func logTicks(updates <-chan monitor.Snapshot) {
	for snap := range updates {
		if snap.State.Terminal() {
			return
		}
		fields := map[string]interface{}{
			"tick": fmt.Sprintf("%d/%d", snap.Tick, snap.Config.ExpectedTicks()),
		}
		for _, series := range snap.Ordered() {
			if n := len(series.Samples); n > 0 {
				fields[series.Name] = fmt.Sprintf("%.2f MB", series.Samples[n-1].MB())
			}
		}
		log.WithFields(fields).Info("tick recorded")
	}
}
