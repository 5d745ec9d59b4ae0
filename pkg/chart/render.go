package chart

import (
	"bytes"
	"time"

	"emperror.dev/errors"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/voluzi/memwatch/pkg/statscollector"
)

const (
	TimeLayout = "15:04:05"
	YAxisLabel = "Memory (MB)"
	XAxisLabel = "Time"
)

// ErrNoPoints is returned when none of the lines holds a point.
var ErrNoPoints = errors.New("no points to plot")

var palette = []drawing.Color{
	drawing.ColorFromHex("1f77b4"),
	drawing.ColorFromHex("ff7f0e"),
	drawing.ColorFromHex("2ca02c"),
	drawing.ColorFromHex("d62728"),
	drawing.ColorFromHex("9467bd"),
	drawing.ColorFromHex("8c564b"),
	drawing.ColorFromHex("e377c2"),
	drawing.ColorFromHex("7f7f7f"),
	drawing.ColorFromHex("bcbd22"),
	drawing.ColorFromHex("17becf"),
}

// Point is a single sample of a named line.
type Point struct {
	Name string
	Time time.Time
	MB   float64
}

// Line is a named time series in megabytes.
type Line struct {
	Name   string
	Points []Point
}

// FromSeries converts a recorded series into a Line.
func FromSeries(series statscollector.Series) Line {
	line := Line{Name: series.Name, Points: make([]Point, len(series.Samples))}
	for i, s := range series.Samples {
		line.Points[i] = Point{Name: series.Name, Time: s.Timestamp, MB: s.MB()}
	}
	return line
}

// RenderPNG draws lines as a time-series chart and returns the PNG bytes.
func RenderPNG(title string, lines []Line, width, height int) ([]byte, error) {
	xMin, xMax, yMin, yMax, ok := bounds(lines)
	if !ok {
		return nil, ErrNoPoints
	}

	series := make([]gochart.Series, 0, len(lines))
	for i, line := range lines {
		if len(line.Points) == 0 {
			continue
		}
		ts := gochart.TimeSeries{
			Name:    line.Name,
			XValues: make([]time.Time, len(line.Points)),
			YValues: make([]float64, len(line.Points)),
			Style: gochart.Style{
				StrokeColor: palette[i%len(palette)],
				StrokeWidth: 2,
				DotColor:    palette[i%len(palette)],
				DotWidth:    3,
			},
		}
		for j, p := range line.Points {
			ts.XValues[j] = p.Time
			ts.YValues[j] = p.MB
		}
		series = append(series, ts)
	}

	graph := gochart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		XAxis: gochart.XAxis{
			Name:           XAxisLabel,
			ValueFormatter: gochart.TimeValueFormatterWithFormat(TimeLayout),
			Range: &gochart.ContinuousRange{
				Min: gochart.TimeToFloat64(xMin),
				Max: gochart.TimeToFloat64(xMax),
			},
		},
		YAxis: gochart.YAxis{
			Name: YAxisLabel,
			Range: &gochart.ContinuousRange{
				Min: yMin,
				Max: yMax,
			},
		},
		Series: series,
	}
	if len(series) > 1 {
		graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, errors.WrapIf(err, "failed to render chart")
	}
	return buf.Bytes(), nil
}

// bounds returns padded axis ranges. Degenerate ranges are widened so that
// single-point and constant series still render.
func bounds(lines []Line) (xMin, xMax time.Time, yMin, yMax float64, ok bool) {
	for _, line := range lines {
		for _, p := range line.Points {
			if !ok {
				xMin, xMax, yMin, yMax, ok = p.Time, p.Time, p.MB, p.MB, true
				continue
			}
			if p.Time.Before(xMin) {
				xMin = p.Time
			}
			if p.Time.After(xMax) {
				xMax = p.Time
			}
			yMin = min(yMin, p.MB)
			yMax = max(yMax, p.MB)
		}
	}
	if !ok {
		return
	}

	if !xMax.After(xMin) {
		xMin = xMin.Add(-time.Second)
		xMax = xMax.Add(time.Second)
	}

	pad := (yMax - yMin) * 0.1
	if pad == 0 {
		pad = max(yMax*0.1, 1)
	}
	yMin = max(yMin-pad, 0)
	yMax += pad
	return
}
