package report

import (
	"github.com/c2h5oh/datasize"
)

const (
	DefaultFileName    = "memory-report.xlsx"
	DefaultMergeWidth  = 800
	DefaultMergeHeight = 400
	DefaultChartWidth  = 600
	DefaultChartHeight = 300
	DefaultBufferSize  = "1MB"
)

// Options configures how a report is rendered and written.
type Options struct {
	FileName    string
	MergeWidth  int
	MergeHeight int
	ChartWidth  int
	ChartHeight int
	Charts      bool
	BufferSize  datasize.ByteSize
}

func defaultOptions() *Options {
	return &Options{
		FileName:    DefaultFileName,
		MergeWidth:  DefaultMergeWidth,
		MergeHeight: DefaultMergeHeight,
		ChartWidth:  DefaultChartWidth,
		ChartHeight: DefaultChartHeight,
		Charts:      true,
		BufferSize:  datasize.MustParseString(DefaultBufferSize),
	}
}

// Option is a functional option for configuring exports.
type Option func(*Options)

// WithFileName overrides the report file (or object) name.
func WithFileName(name string) Option {
	return func(o *Options) {
		o.FileName = name
	}
}

// WithMergeChartSize sets the pixel size of the combined chart.
func WithMergeChartSize(width, height int) Option {
	return func(o *Options) {
		o.MergeWidth = width
		o.MergeHeight = height
	}
}

// WithChartSize sets the pixel size of each per-process chart.
func WithChartSize(width, height int) Option {
	return func(o *Options) {
		o.ChartWidth = width
		o.ChartHeight = height
	}
}

// WithoutCharts skips chart rendering, leaving only the data and summary sheets.
func WithoutCharts() Option {
	return func(o *Options) {
		o.Charts = false
	}
}

// WithBufferSize sets the copy buffer used when uploading to object storage.
func WithBufferSize(size datasize.ByteSize) Option {
	return func(o *Options) {
		o.BufferSize = size
	}
}
