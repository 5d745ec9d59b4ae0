package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync/atomic"

	"cloud.google.com/go/storage"
	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/memwatch/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GcsExporter uploads reports to a Google Cloud Storage bucket.
type GcsExporter struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGcsExporter(ctx context.Context, bucket, prefix string) (*GcsExporter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %v", err)
	}
	return &GcsExporter{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (gcs *GcsExporter) Provider() Provider {
	return GCS
}

func (gcs *GcsExporter) objectName(fileName string) string {
	if gcs.prefix == "" {
		return fileName
	}
	return path.Join(gcs.prefix, fileName)
}

func (gcs *GcsExporter) Export(ctx context.Context, in Input, opts ...Option) (string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	data, err := build(in, options)
	if err != nil {
		return "", err
	}

	name := gcs.objectName(options.FileName)
	target := fmt.Sprintf("gs://%s/%s", gcs.bucket, name)

	log.WithFields(map[string]interface{}{
		"size":   datasize.ByteSize(len(data)).HumanReadable(),
		"target": target,
	}).Info("uploading report")

	var uploaded atomic.Uint64
	r := newReaderWithBytesCounter(bytes.NewReader(data), &uploaded)
	if err := gcs.upload(ctx, name, r, options.BufferSize.Bytes()); err != nil {
		return "", errors.WrapIfWithDetails(err, "failed to upload report", "target", target)
	}

	log.WithFields(map[string]interface{}{
		"target":   target,
		"uploaded": datasize.ByteSize(uploaded.Load()).HumanReadable(),
		"sha256":   utils.Sha256(data),
	}).Info("report uploaded")
	return target, nil
}

func (gcs *GcsExporter) upload(ctx context.Context, objName string, r io.Reader, bufferSize uint64) error {
	w := gcs.client.Bucket(gcs.bucket).Object(objName).NewWriter(ctx)
	w.ContentType = xlsxContentType

	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(w, r, buf); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Close releases the storage client.
func (gcs *GcsExporter) Close() error {
	return gcs.client.Close()
}
