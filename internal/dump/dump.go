// Package dump persists finished sessions so reports can be regenerated later.
package dump

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/klauspost/pgzip"

	"github.com/voluzi/memwatch/pkg/monitor"
	"github.com/voluzi/memwatch/pkg/utils"
)

const (
	Version = 1

	gzipSuffix = ".gz"
)

// Dump is the on-disk form of a session.
type Dump struct {
	Version   int              `json:"version"`
	CreatedAt time.Time        `json:"created_at"`
	Merge     []string         `json:"merge,omitempty"`
	Snapshot  monitor.Snapshot `json:"snapshot"`
}

// Write stores snap at path. Paths ending in .gz are gzip compressed. The
// dump is encoded in memory and renamed into place, so a failed write leaves
// any previous file at path untouched.
func Write(path string, snap monitor.Snapshot, merge []string) error {
	var buf bytes.Buffer
	var w io.Writer = &buf
	var gz *pgzip.Writer
	if strings.HasSuffix(path, gzipSuffix) {
		var err error
		gz, err = pgzip.NewWriterLevel(&buf, pgzip.BestSpeed)
		if err != nil {
			return errors.WrapIf(err, "pgzip writer failed")
		}
		w = gz
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Dump{
		Version:   Version,
		CreatedAt: time.Now(),
		Merge:     merge,
		Snapshot:  snap,
	}); err != nil {
		return errors.WrapIf(err, "failed to encode session dump")
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.WrapIf(err, "failed to flush compressed dump")
		}
	}
	return utils.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// Read loads a dump written by Write.
func Read(path string) (Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dump{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, gzipSuffix) {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return Dump{}, errors.WrapIf(err, "pgzip reader failed")
		}
		defer gz.Close()
		r = gz
	}

	var d Dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Dump{}, errors.WrapIf(err, "failed to decode session dump")
	}
	if d.Version != Version {
		return Dump{}, errors.Errorf("unsupported dump version %d", d.Version)
	}
	return d, nil
}
