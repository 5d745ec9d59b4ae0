package framework

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/memwatch/pkg/utils"
)

// Framework spawns real worker processes for memwatch to observe.
type Framework struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *Configs
	workers []*exec.Cmd
	tempDir bool
}

func New(cfgs ...Config) *Framework {
	config := defaultConfig()
	for _, cfg := range cfgs {
		cfg(config)
	}
	return &Framework{cfg: config}
}

// Setup prepares the output directory and starts the workers.
func (f *Framework) Setup(ctx context.Context) error {
	f.ctx, f.cancel = context.WithCancel(ctx)

	if _, err := exec.LookPath(f.cfg.WorkerCommand); err != nil {
		return errors.WrapIfWithDetails(err, "worker command not available", "command", f.cfg.WorkerCommand)
	}

	if f.cfg.OutputDir == "" {
		dir, err := os.MkdirTemp("", "memwatch-integration-")
		if err != nil {
			return err
		}
		f.cfg.OutputDir = dir
		f.tempDir = true
	} else if err := utils.EnsureDir(f.cfg.OutputDir); err != nil {
		return err
	}

	for i := 0; i < f.cfg.WorkerCount; i++ {
		cmd := exec.CommandContext(f.ctx, f.cfg.WorkerCommand, f.cfg.WorkerArgs...)
		if err := cmd.Start(); err != nil {
			return errors.WrapIf(err, "failed to start worker")
		}
		f.workers = append(f.workers, cmd)
	}

	log.WithFields(map[string]interface{}{
		"workers": len(f.workers),
		"command": f.cfg.WorkerCommand,
		"output":  f.cfg.OutputDir,
	}).Info("integration framework ready")
	return nil
}

// TearDown kills the workers and removes temporary output.
func (f *Framework) TearDown() error {
	if f.cancel != nil {
		f.cancel()
	}
	for _, cmd := range f.workers {
		// Killed workers exit with a non-nil status.
		_ = cmd.Wait()
	}
	f.workers = nil

	if f.tempDir {
		return os.RemoveAll(f.cfg.OutputDir)
	}
	return nil
}

func (f *Framework) Context() context.Context {
	return f.ctx
}

// WorkerName returns the process name the workers run under.
func (f *Framework) WorkerName() string {
	return filepath.Base(f.cfg.WorkerCommand)
}

// WorkerCount returns the number of workers started by Setup.
func (f *Framework) WorkerCount() int {
	return len(f.workers)
}

// OutputDir returns where reports and dumps should be written.
func (f *Framework) OutputDir() string {
	return f.cfg.OutputDir
}

// WorkerPIDs returns the PIDs of the running workers.
func (f *Framework) WorkerPIDs() []int32 {
	pids := make([]int32, 0, len(f.workers))
	for _, cmd := range f.workers {
		pids = append(pids, int32(cmd.Process.Pid))
	}
	return pids
}
