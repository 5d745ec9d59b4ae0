package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voluzi/memwatch/pkg/environ"
	"github.com/voluzi/memwatch/pkg/report"
)

// exportReport writes in to dest. A session without samples is reported and
// skipped rather than treated as a failure.
func exportReport(ctx context.Context, dest string, in report.Input, opts ...report.Option) error {
	exporter, err := report.FromDestination(ctx, dest)
	if err != nil {
		return errors.WrapIfWithDetails(err, "failed to create exporter", "destination", dest)
	}
	if closer, ok := exporter.(io.Closer); ok {
		defer closer.Close()
	}

	location, err := exporter.Export(ctx, in, opts...)
	if errors.Is(err, report.ErrNoData) {
		log.Warn("no samples were recorded, skipping report")
		return nil
	}
	if err != nil {
		return errors.WrapIfWithDetails(err, "failed to export report", "destination", dest)
	}

	log.WithFields(map[string]interface{}{
		"provider": exporter.Provider(),
		"location": location,
	}).Info("report exported")
	return nil
}

// exportFlags holds the report rendering flags shared by run and report.
type exportFlags struct {
	uploadBuffer   string
	chartSize      string
	mergeChartSize string
	noCharts       bool
}

func (e *exportFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&e.uploadBuffer, "upload-buffer", environ.GetString(envUploadBuffer, report.DefaultBufferSize), "Copy buffer for gs:// uploads, e.g. 512KB, 4MB (env UPLOAD_BUFFER).")
	f.StringVar(&e.chartSize, "chart-size", fmt.Sprintf("%dx%d", report.DefaultChartWidth, report.DefaultChartHeight), "Pixel size of each per-process chart, WIDTHxHEIGHT.")
	f.StringVar(&e.mergeChartSize, "merge-chart-size", fmt.Sprintf("%dx%d", report.DefaultMergeWidth, report.DefaultMergeHeight), "Pixel size of the combined chart, WIDTHxHEIGHT.")
	f.BoolVar(&e.noCharts, "no-charts", false, "Only write the data and summary sheets.")
}

// options converts the flags into report options.
func (e exportFlags) options() ([]report.Option, error) {
	var opts []report.Option

	if e.uploadBuffer != "" {
		size, err := datasize.ParseString(e.uploadBuffer)
		if err != nil {
			return nil, errors.WrapIfWithDetails(err, "invalid upload buffer size", "size", e.uploadBuffer)
		}
		if size == 0 {
			return nil, errors.Errorf("upload buffer size must be positive, got %q", e.uploadBuffer)
		}
		opts = append(opts, report.WithBufferSize(size))
	}

	if e.noCharts {
		return append(opts, report.WithoutCharts()), nil
	}
	if e.chartSize != "" {
		w, h, err := parseChartSize(e.chartSize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, report.WithChartSize(w, h))
	}
	if e.mergeChartSize != "" {
		w, h, err := parseChartSize(e.mergeChartSize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, report.WithMergeChartSize(w, h))
	}
	return opts, nil
}

// parseChartSize reads a WIDTHxHEIGHT pixel size.
func parseChartSize(value string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(value), "x")
	if !ok {
		return 0, 0, errors.Errorf("invalid chart size %q: expected WIDTHxHEIGHT", value)
	}
	w, werr := strconv.Atoi(strings.TrimSpace(ws))
	h, herr := strconv.Atoi(strings.TrimSpace(hs))
	if werr != nil || herr != nil || w <= 0 || h <= 0 {
		return 0, 0, errors.Errorf("invalid chart size %q: expected WIDTHxHEIGHT", value)
	}
	return w, h, nil
}

func printSummary(w io.Writer, in report.Input) {
	sums := report.Summaries(in)
	if len(sums) == 0 {
		return
	}

	rows := make([][]string, 0, len(sums))
	for _, s := range sums {
		rows = append(rows, []string{
			s.Name,
			fmt.Sprintf("%.2f", s.Max),
			fmt.Sprintf("%.2f", s.Min),
			fmt.Sprintf("%.2f", s.Mean),
			fmt.Sprintf("%.2f", s.Sigma3),
		})
	}
	fmt.Fprintln(w, newTable("PROCESS", "MAX (MB)", "MIN (MB)", "MEAN (MB)", "3σ (MB)").Rows(rows...).String())
}
