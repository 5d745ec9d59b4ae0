package report

import (
	"context"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/memwatch/pkg/utils"
)

// LocalExporter writes reports into a directory on disk.
type LocalExporter struct {
	dir string
}

func NewLocalExporter(dir string) *LocalExporter {
	return &LocalExporter{dir: dir}
}

func (l *LocalExporter) Provider() Provider {
	return Local
}

func (l *LocalExporter) Export(_ context.Context, in Input, opts ...Option) (string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	data, err := build(in, options)
	if err != nil {
		return "", err
	}

	if err := utils.EnsureDir(l.dir); err != nil {
		return "", errors.WrapIfWithDetails(err, "failed to prepare report directory", "dir", l.dir)
	}

	path := filepath.Join(l.dir, options.FileName)
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", errors.WrapIfWithDetails(err, "failed to save report", "path", path)
	}

	sum, err := utils.Sha256File(path)
	if err != nil {
		return "", errors.WrapIfWithDetails(err, "failed to hash report", "path", path)
	}
	log.WithFields(map[string]interface{}{
		"path":   path,
		"size":   datasize.ByteSize(len(data)).HumanReadable(),
		"sha256": sum,
	}).Info("report written")

	return path, nil
}
