package chart

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluzi/memwatch/pkg/statscollector"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func line(name string, mbs ...float64) Line {
	l := Line{Name: name}
	for i, mb := range mbs {
		l.Points = append(l.Points, Point{Name: name, Time: t0.Add(time.Duration(i) * 5 * time.Second), MB: mb})
	}
	return l
}

func TestRenderPNG(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
	}{
		{name: "single line", lines: []Line{line("P", 10, 20, 15)}},
		{name: "multiple lines", lines: []Line{line("P", 10, 20), line("Q", 100, 90)}},
		{name: "single point", lines: []Line{line("P", 42)}},
		{name: "constant zero", lines: []Line{line("Q", 0, 0, 0)}},
		{name: "empty line next to data", lines: []Line{line("P"), line("Q", 1, 2)}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := RenderPNG("Memory usage", test.lines, 600, 300)
			require.NoError(t, err)

			cfg, err := png.DecodeConfig(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 600, cfg.Width)
			assert.Equal(t, 300, cfg.Height)
		})
	}
}

func TestRenderPNG_NoPoints(t *testing.T) {
	_, err := RenderPNG("empty", []Line{line("P")}, 600, 300)
	assert.ErrorIs(t, err, ErrNoPoints)

	_, err = RenderPNG("empty", nil, 600, 300)
	assert.ErrorIs(t, err, ErrNoPoints)
}

func TestBounds_WidensDegenerateRanges(t *testing.T) {
	xMin, xMax, yMin, yMax, ok := bounds([]Line{line("P", 50)})
	require.True(t, ok)
	assert.True(t, xMax.After(xMin))
	assert.Less(t, yMin, 50.0)
	assert.Greater(t, yMax, 50.0)
	assert.GreaterOrEqual(t, yMin, 0.0)
}

func TestFromSeries(t *testing.T) {
	series := statscollector.Series{
		Name: "P",
		Samples: []statscollector.Sample{
			{Timestamp: t0, Bytes: 100 * statscollector.BytesPerMB},
			{Timestamp: t0.Add(time.Second), Bytes: 50 * statscollector.BytesPerMB},
		},
	}

	l := FromSeries(series)
	assert.Equal(t, "P", l.Name)
	require.Len(t, l.Points, 2)
	assert.Equal(t, Point{Name: "P", Time: t0, MB: 100}, l.Points[0])
	assert.Equal(t, 50.0, l.Points[1].MB)
}

func TestNearest(t *testing.T) {
	lines := []Line{line("P", 100, 105, 110), line("Q", 103, 200, 300)}

	tests := []struct {
		name  string
		at    time.Time
		mb    float64
		want  Point
		found bool
	}{
		{
			name:  "exact hit",
			at:    t0.Add(5 * time.Second),
			mb:    105,
			want:  lines[0].Points[1],
			found: true,
		},
		{
			name:  "value axis breaks time tie",
			at:    t0,
			mb:    102.8,
			want:  lines[1].Points[0],
			found: true,
		},
		{
			name:  "time axis dominates",
			at:    t0.Add(4 * time.Second),
			mb:    104,
			want:  lines[0].Points[1],
			found: true,
		},
		{
			name: "outside time window",
			at:   t0.Add(-6 * time.Second),
			mb:   100,
		},
		{
			name: "outside value window",
			at:   t0.Add(10 * time.Second),
			mb:   150,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := Nearest(lines, test.at, test.mb)
			assert.Equal(t, test.found, ok)
			if test.found {
				assert.Equal(t, test.want, got)
			}
		})
	}
}

func TestNearest_WindowEdges(t *testing.T) {
	lines := []Line{line("P", 100)}

	tests := []struct {
		name  string
		at    time.Time
		mb    float64
		found bool
	}{
		{name: "exactly the time window away", at: t0.Add(HoverTimeWindow), mb: 100},
		{name: "exactly the time window before", at: t0.Add(-HoverTimeWindow), mb: 100},
		{name: "exactly the value window above", at: t0, mb: 100 + HoverMBWindow},
		{name: "exactly the value window below", at: t0, mb: 100 - HoverMBWindow},
		{name: "just inside the time window", at: t0.Add(HoverTimeWindow - time.Millisecond), mb: 100, found: true},
		{name: "just inside the value window", at: t0, mb: 100 + HoverMBWindow - 0.01, found: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := Nearest(lines, test.at, test.mb)
			assert.Equal(t, test.found, ok)
			if test.found {
				assert.Equal(t, lines[0].Points[0], got)
			}
		})
	}
}

func TestNearestInTime(t *testing.T) {
	l := line("P", 1, 2, 3)

	p, ok := NearestInTime(l, t0.Add(7*time.Second))
	require.True(t, ok)
	assert.Equal(t, 2.0, p.MB)

	_, ok = NearestInTime(Line{Name: "P"}, t0)
	assert.False(t, ok)
}
