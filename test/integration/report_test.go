package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/voluzi/memwatch/internal/dump"
	"github.com/voluzi/memwatch/pkg/monitor"
	"github.com/voluzi/memwatch/pkg/report"
	"github.com/voluzi/memwatch/pkg/server"
)

var _ = Describe("Session results", Ordered, func() {
	var (
		session *monitor.Session
		snap    monitor.Snapshot
	)

	BeforeAll(func() {
		session = NewSession()
		cfg := monitor.NewConfig(2*time.Second, time.Second, Framework().WorkerName(), MissingProcess)
		snap, _ = RunToCompletion(session, cfg)
	})

	It("exports a workbook with data, summary and charts", func() {
		exporter := report.NewLocalExporter(Framework().OutputDir())
		location, err := exporter.Export(context.Background(), report.NewInput(snap, []string{Framework().WorkerName()}))
		Expect(err).NotTo(HaveOccurred())
		Expect(location).To(Equal(filepath.Join(Framework().OutputDir(), report.DefaultFileName)))

		f, err := excelize.OpenFile(location)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(f.Close)

		rows, err := f.GetRows(report.DataSheet)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(3))
		Expect(rows[0]).To(Equal([]string{"Timestamp", Framework().WorkerName(), MissingProcess}))

		summary, err := f.GetRows(report.SummarySheet)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(HaveLen(3))

		cells, err := f.GetPictureCells(report.DataSheet)
		Expect(err).NotTo(HaveOccurred())
		Expect(cells).To(ConsistOf("A5", "A40", "A60"))
	})

	It("regenerates the same summaries from a dump", func() {
		path := filepath.Join(Framework().OutputDir(), "session.json.gz")
		Expect(dump.Write(path, snap, nil)).To(Succeed())

		d, err := dump.Read(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Summaries(report.NewInput(d.Snapshot, nil))).To(Equal(report.Summaries(report.NewInput(snap, nil))))
	})

	It("serves the final snapshot as metrics", func() {
		ts := httptest.NewServer(server.New(session).Handler())
		DeferCleanup(ts.Close)

		resp, err := http.Get(ts.URL + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`memwatch_process_rss_bytes{process="` + Framework().WorkerName() + `"}`))
		Expect(string(body)).To(ContainSubstring("memwatch_session_ticks 2"))
	})
})
