package report

import (
	"fmt"
	"sort"
	"time"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"k8s.io/utils/ptr"

	"github.com/voluzi/memwatch/pkg/chart"
	"github.com/voluzi/memwatch/pkg/statscollector"
)

const (
	DataSheet    = "Memory Data"
	SummarySheet = "Summary"

	timestampHeader = "Timestamp"
	timestampFormat = "yyyy-mm-dd hh:mm:ss"
	mbFormat        = 2 // built-in "0.00"

	timestampWidth   = 25
	processWidth     = 18
	summaryNameWidth = 15
	summaryWidth     = 12

	mergeChartRows = 30
	chartSpacing   = 5
	chartRows      = 20
)

var summaryHeader = []interface{}{"Process", "Max (MB)", "Min (MB)", "Mean (MB)", "3σ (MB)"}

// Build renders the workbook and returns the encoded xlsx bytes.
func Build(in Input, opts ...Option) ([]byte, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return build(in, options)
}

func build(in Input, opts *Options) ([]byte, error) {
	if !in.HasData() {
		return nil, ErrNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), DataSheet); err != nil {
		return nil, errors.WrapIf(err, "failed to name data sheet")
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return nil, errors.WrapIf(err, "failed to create summary sheet")
	}

	rows, err := writeData(f, in)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to write data sheet")
	}
	if err := writeSummary(f, in); err != nil {
		return nil, errors.WrapIf(err, "failed to write summary sheet")
	}
	if opts.Charts {
		if err := placeCharts(f, in, rows, opts); err != nil {
			return nil, errors.WrapIf(err, "failed to embed charts")
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.WrapIf(err, "failed to encode workbook")
	}
	return buf.Bytes(), nil
}

// timestamps returns the ascending union of sample timestamps.
func timestamps(in Input) []time.Time {
	seen := make(map[int64]time.Time)
	for _, name := range in.Names {
		for _, s := range in.Series[name].Samples {
			seen[s.Timestamp.UnixNano()] = s.Timestamp
		}
	}
	result := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		result = append(result, ts)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Before(result[j])
	})
	return result
}

// writeData fills the data sheet and returns the number of data rows.
func writeData(f *excelize.File, in Input) (int, error) {
	header := make([]interface{}, 0, len(in.Names)+1)
	header = append(header, timestampHeader)
	for _, name := range in.Names {
		header = append(header, name)
	}
	if err := f.SetSheetRow(DataSheet, "A1", &header); err != nil {
		return 0, err
	}

	index := make(map[int64]int)
	times := timestamps(in)
	for i, ts := range times {
		index[ts.UnixNano()] = i + 2
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetCellValue(DataSheet, cell, wallClock(ts)); err != nil {
			return 0, err
		}
	}

	for col, name := range in.Names {
		for _, s := range in.Series[name].Samples {
			cell, _ := excelize.CoordinatesToCellName(col+2, index[s.Timestamp.UnixNano()])
			if err := f.SetCellFloat(DataSheet, cell, s.MB(), -1, 64); err != nil {
				return 0, err
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(in.Names) + 1)
	lastRow := len(times) + 1

	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	headerStyle, err := f.NewStyle(&excelize.Style{Alignment: center, Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, err
	}
	timeStyle, err := f.NewStyle(&excelize.Style{Alignment: center, CustomNumFmt: ptr.To(timestampFormat)})
	if err != nil {
		return 0, err
	}
	valueStyle, err := f.NewStyle(&excelize.Style{Alignment: center, NumFmt: mbFormat})
	if err != nil {
		return 0, err
	}

	if err := f.SetCellStyle(DataSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return 0, err
	}
	if lastRow > 1 {
		if err := f.SetCellStyle(DataSheet, "A2", fmt.Sprintf("A%d", lastRow), timeStyle); err != nil {
			return 0, err
		}
		if len(in.Names) > 0 {
			if err := f.SetCellStyle(DataSheet, "B2", fmt.Sprintf("%s%d", lastCol, lastRow), valueStyle); err != nil {
				return 0, err
			}
		}
	}

	if err := f.SetColWidth(DataSheet, "A", "A", timestampWidth); err != nil {
		return 0, err
	}
	if len(in.Names) > 0 {
		if err := f.SetColWidth(DataSheet, "B", lastCol, processWidth); err != nil {
			return 0, err
		}
	}
	return len(times), nil
}

func writeSummary(f *excelize.File, in Input) error {
	if err := f.SetSheetRow(SummarySheet, "A1", &summaryHeader); err != nil {
		return err
	}

	row := 2
	for _, sum := range Summaries(in) {
		values := []interface{}{sum.Name, sum.Max, sum.Min, sum.Mean, sum.Sigma3}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SummarySheet, cell, &values); err != nil {
			return err
		}
		row++
	}

	style, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{Horizontal: "center"}})
	if err != nil {
		return err
	}
	if row > 2 {
		if err := f.SetCellStyle(SummarySheet, "B2", fmt.Sprintf("E%d", row-1), style); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", summaryNameWidth); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "B", "E", summaryWidth)
}

// placeCharts embeds the combined chart (when requested and non-empty)
// followed by one chart per process, below the data table.
func placeCharts(f *excelize.File, in Input, rows int, opts *Options) error {
	current := rows + 3

	var merged []chart.Line
	for _, name := range in.Merge {
		series, ok := in.Series[name]
		if !ok || series.Len() == 0 {
			continue
		}
		merged = append(merged, chart.FromSeries(series))
	}

	if len(merged) > 0 {
		img, err := chart.RenderPNG("Memory usage comparison", merged, opts.MergeWidth, opts.MergeHeight)
		if err != nil {
			return err
		}
		if err := addPicture(f, current, img, "combined"); err != nil {
			return err
		}
		current += mergeChartRows + chartSpacing
	}

	for _, name := range in.Names {
		series := in.Series[name]
		if series.Len() == 0 {
			continue
		}
		img, err := chart.RenderPNG(fmt.Sprintf("%s memory usage", name), []chart.Line{chart.FromSeries(series)}, opts.ChartWidth, opts.ChartHeight)
		if err != nil {
			return err
		}
		if err := addPicture(f, current, img, name); err != nil {
			return err
		}
		current += chartRows
	}
	return nil
}

func addPicture(f *excelize.File, row int, img []byte, alt string) error {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	log.WithFields(map[string]interface{}{
		"cell":  cell,
		"chart": alt,
	}).Trace("embedding chart")
	return f.AddPictureFromBytes(DataSheet, cell, &excelize.Picture{
		Extension: ".png",
		File:      img,
		Format:    &excelize.GraphicOptions{AltText: alt},
	})
}

// Summaries returns the rounded statistics of every named series with data,
// in name order.
func Summaries(in Input) []NamedSummary {
	result := make([]NamedSummary, 0, len(in.Names))
	for _, name := range in.Names {
		series := in.Series[name]
		if series.Len() == 0 {
			continue
		}
		result = append(result, NamedSummary{Name: name, Summary: series.Summary().Rounded()})
	}
	return result
}

type NamedSummary struct {
	Name string
	statscollector.Summary
}

// wallClock re-anchors ts in UTC keeping its local wall time, since excelize
// serializes dates relative to UTC.
func wallClock(ts time.Time) time.Time {
	l := ts.Local()
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}
