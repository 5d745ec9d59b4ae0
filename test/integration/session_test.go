package integration

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voluzi/memwatch/pkg/monitor"
)

var _ = Describe("Monitoring session", func() {

	It("samples every tick for the whole duration", func() {
		worker := Framework().WorkerName()
		cfg := monitor.NewConfig(3*time.Second, time.Second, worker, MissingProcess)

		snap, published := RunToCompletion(NewSession(), cfg)
		Expect(snap.State).To(Equal(monitor.Completed))
		Expect(snap.Tick).To(Equal(cfg.ExpectedTicks()))

		workers := snap.Series[worker]
		Expect(workers.Len()).To(Equal(3))
		for _, s := range workers.Samples {
			Expect(s.Bytes).To(BeNumerically(">", 0))
		}

		By("recording zero usage for names without processes")
		missing := snap.Series[MissingProcess]
		Expect(missing.Values()).To(Equal([]float64{0, 0, 0}))
		Expect(missing.Summary().Sigma3).To(BeZero())

		By("publishing one snapshot per tick plus the final state")
		Expect(published).To(HaveLen(4))
		Expect(published[3].State).To(Equal(monitor.Completed))
	})

	It("spaces ticks one interval apart", func() {
		cfg := monitor.NewConfig(3*time.Second, time.Second, Framework().WorkerName())

		snap, _ := RunToCompletion(NewSession(), cfg)
		samples := snap.Series[Framework().WorkerName()].Samples
		Expect(samples).To(HaveLen(3))

		Expect(samples[0].Timestamp.Sub(snap.StartedAt)).To(BeNumerically("~", time.Second, 500*time.Millisecond))
		for i := 1; i < len(samples); i++ {
			Expect(samples[i].Timestamp.Sub(samples[i-1].Timestamp)).To(BeNumerically("~", time.Second, 500*time.Millisecond))
		}
	})

	It("sums the memory of every process sharing a name", func() {
		if Framework().WorkerCount() < 2 {
			Skip("needs at least two workers")
		}
		cfg := monitor.NewConfig(time.Second, time.Second, Framework().WorkerName())

		snap, _ := RunToCompletion(NewSession(), cfg)
		samples := snap.Series[Framework().WorkerName()].Samples
		Expect(samples).To(HaveLen(1))
		Expect(samples[0].Bytes).To(BeNumerically(">", LargestWorkerRSS()))
	})

	It("stops cooperatively and keeps the samples gathered so far", func() {
		session := NewSession()
		cfg := monitor.NewConfig(time.Minute, time.Second, Framework().WorkerName())

		Expect(session.Start(Framework().Context(), cfg)).To(Succeed())
		Eventually(func() int {
			return session.Snapshot().Tick
		}).Should(BeNumerically(">=", 1))

		session.Stop()
		Expect(session.State()).To(Equal(monitor.Stopped))
		Expect(session.Wait(Framework().Context())).To(Succeed())

		snap, err := session.Result()
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.State).To(Equal(monitor.Stopped))
		Expect(snap.Tick).To(BeNumerically("<", cfg.ExpectedTicks()))
		Expect(snap.Series[Framework().WorkerName()].Len()).To(Equal(snap.Tick))
	})

	It("rejects invalid configurations without starting", func() {
		session := NewSession()
		err := session.Start(Framework().Context(), monitor.NewConfig(time.Second, 2*time.Second, Framework().WorkerName()))
		Expect(err).To(MatchError(monitor.ErrInvalidConfig))
		Expect(session.State()).To(Equal(monitor.Idle))
	})
})
