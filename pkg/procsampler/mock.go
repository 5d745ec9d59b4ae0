package procsampler

import (
	"context"
	"sync"

	"emperror.dev/errors"
)

// ErrProcessGone is returned by MockProcess handles marked as exited.
var ErrProcessGone = errors.New("process does not exist")

// MockProcess is an in-memory process entry served by MockTable.
type MockProcess struct {
	Pid       int32
	Comm      string
	Resident  uint64
	Gone      bool
	NameCalls int
}

// MockTable is a ProcessTable whose contents are set by tests.
type MockTable struct {
	mu    sync.Mutex
	procs []*MockProcess
	err   error
}

// NewMockTable creates a MockTable holding the given processes.
func NewMockTable(procs ...*MockProcess) *MockTable {
	return &MockTable{procs: procs}
}

// Set replaces the process list.
func (m *MockTable) Set(procs ...*MockProcess) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs = procs
}

// SetError makes subsequent listings fail with err. A nil err clears it.
func (m *MockTable) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetMemory updates the RSS of every process with the given name.
func (m *MockTable) SetMemory(name string, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.procs {
		if p.Comm == name {
			p.Resident = bytes
		}
	}
}

func (m *MockTable) Processes(_ context.Context) ([]Process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	result := make([]Process, len(m.procs))
	for i, p := range m.procs {
		result[i] = mockHandle{table: m, proc: p}
	}
	return result, nil
}

type mockHandle struct {
	table *MockTable
	proc  *MockProcess
}

func (h mockHandle) PID() int32 {
	return h.proc.Pid
}

func (h mockHandle) Name(_ context.Context) (string, error) {
	h.table.mu.Lock()
	defer h.table.mu.Unlock()
	h.proc.NameCalls++
	if h.proc.Gone {
		return "", ErrProcessGone
	}
	return h.proc.Comm, nil
}

func (h mockHandle) RSS(_ context.Context) (uint64, error) {
	h.table.mu.Lock()
	defer h.table.mu.Unlock()
	if h.proc.Gone {
		return 0, ErrProcessGone
	}
	return h.proc.Resident, nil
}
