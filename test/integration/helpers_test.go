package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shirou/gopsutil/process"

	"github.com/voluzi/memwatch/pkg/monitor"
	"github.com/voluzi/memwatch/pkg/procsampler"
)

const (
	// MissingProcess is a name no host process is expected to run under.
	MissingProcess = "memwatch-no-such-process"

	subscriptionBuffer = 64
)

// NewSession returns a session sampling the host process table.
func NewSession() *monitor.Session {
	return monitor.New(monitor.WithSampler(procsampler.New()))
}

// RunToCompletion starts cfg on session and returns its final snapshot along
// with every snapshot published meanwhile.
func RunToCompletion(session *monitor.Session, cfg monitor.Config) (monitor.Snapshot, []monitor.Snapshot) {
	updates, unsubscribe := session.Subscribe(subscriptionBuffer)
	DeferCleanup(unsubscribe)

	Expect(session.Start(Framework().Context(), cfg)).To(Succeed())

	var published []monitor.Snapshot
	Eventually(func() bool {
		select {
		case snap := <-updates:
			published = append(published, snap)
			return snap.State.Terminal()
		default:
			return false
		}
	}).WithTimeout(cfg.Duration + eventuallyTimeout).WithPolling(50 * time.Millisecond).Should(BeTrue())

	Expect(session.Wait(Framework().Context())).To(Succeed())
	snap, err := session.Result()
	Expect(err).NotTo(HaveOccurred())
	return snap, published
}

// LargestWorkerRSS returns the biggest resident size among the workers.
func LargestWorkerRSS() uint64 {
	var largest uint64
	for _, pid := range Framework().WorkerPIDs() {
		p, err := process.NewProcess(pid)
		Expect(err).NotTo(HaveOccurred())
		mem, err := p.MemoryInfo()
		Expect(err).NotTo(HaveOccurred())
		largest = max(largest, mem.RSS)
	}
	return largest
}
