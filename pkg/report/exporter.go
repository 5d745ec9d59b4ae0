package report

import (
	"context"
	"fmt"
	"strings"

	"emperror.dev/errors"

	"github.com/voluzi/memwatch/pkg/monitor"
	"github.com/voluzi/memwatch/pkg/statscollector"
)

type Provider string

const (
	Local Provider = "local"
	GCS   Provider = "gcs"

	gcsScheme = "gs://"
)

// ErrNoData is returned when no series holds a sample. Nothing is written.
var ErrNoData = errors.New("no monitoring data to export")

// Input is the data a report is built from.
type Input struct {
	// Names is the column and chart order.
	Names  []string
	Series map[string]statscollector.Series
	// Merge lists the names drawn together on the combined chart.
	Merge []string
}

// NewInput builds an Input from a finished session snapshot.
func NewInput(snap monitor.Snapshot, merge []string) Input {
	return Input{
		Names:  snap.Config.Names,
		Series: snap.Series,
		Merge:  merge,
	}
}

// HasData reports whether any named series holds a sample.
func (in Input) HasData() bool {
	for _, name := range in.Names {
		if in.Series[name].Len() > 0 {
			return true
		}
	}
	return false
}

type Exporter interface {
	Provider() Provider
	// Export writes the report and returns where it was written.
	Export(ctx context.Context, in Input, opts ...Option) (string, error)
}

// FromDestination picks the exporter for dest: a gs://bucket/prefix URL or a
// local directory. An empty dest means the current directory.
func FromDestination(ctx context.Context, dest string) (Exporter, error) {
	if strings.HasPrefix(dest, gcsScheme) {
		bucket, prefix, err := ParseGCSURL(dest)
		if err != nil {
			return nil, err
		}
		return NewGcsExporter(ctx, bucket, prefix)
	}
	if dest == "" {
		dest = "."
	}
	return NewLocalExporter(dest), nil
}

// ParseGCSURL splits gs://bucket/prefix into its parts.
func ParseGCSURL(url string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(url, gcsScheme)
	if !ok {
		return "", "", fmt.Errorf("not a %s url: %q", gcsScheme, url)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", url)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
