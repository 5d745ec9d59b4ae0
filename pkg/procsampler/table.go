package procsampler

import (
	"context"

	"github.com/shirou/gopsutil/process"
)

// Process is the subset of an OS process handle the sampler relies on.
type Process interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	RSS(ctx context.Context) (uint64, error)
}

// ProcessTable enumerates the processes currently running on the host.
type ProcessTable interface {
	Processes(ctx context.Context) ([]Process, error)
}

// SystemTable reads the host process table through gopsutil.
type SystemTable struct{}

func (SystemTable) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]Process, len(procs))
	for i, p := range procs {
		result[i] = systemProcess{p: p}
	}
	return result, nil
}

type systemProcess struct {
	p *process.Process
}

func (s systemProcess) PID() int32 {
	return s.p.Pid
}

func (s systemProcess) Name(ctx context.Context) (string, error) {
	return s.p.NameWithContext(ctx)
}

// RSS returns the resident set size in bytes.
func (s systemProcess) RSS(ctx context.Context) (uint64, error) {
	mem, err := s.p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}
