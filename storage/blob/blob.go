// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package blob

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/gorse-io/gorse-movies/config"
	"github.com/juju/errors"
)

const (
	S3Prefix    = "s3://"
	GCSPrefix   = "gcs://"
	GSPrefix    = "gs://"
	AzurePrefix = "azblob://"
	FilePrefix  = "file://"
)

// Store keeps dataset artifacts by name.
type Store interface {
	// Open reads an artifact. A missing artifact is NotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create writes an artifact. Close returns once the artifact is stored, and readers
	// never observe a partial artifact.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// List names of all artifacts.
	List(ctx context.Context) ([]string, error)
}

// NewStore opens the store addressed by dataset.storage. Paths without a scheme and
// file:// URLs are local directories.
func NewStore(cfg *config.Config) (Store, error) {
	storage := cfg.Dataset.Storage
	switch {
	case strings.HasPrefix(storage, S3Prefix):
		bucket, prefix, err := splitURL(storage)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewS3(cfg.S3, bucket, prefix)
	case strings.HasPrefix(storage, GCSPrefix), strings.HasPrefix(storage, GSPrefix):
		bucket, prefix, err := splitURL(storage)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewGCS(context.Background(), cfg.GCS, bucket, prefix)
	case strings.HasPrefix(storage, AzurePrefix):
		container, prefix, err := splitURL(storage)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return NewAzureBlob(cfg.Azure, container, prefix)
	case strings.Contains(storage, "://") && !strings.HasPrefix(storage, FilePrefix):
		return nil, errors.NotSupportedf("storage %s", storage)
	default:
		return NewPOSIX(strings.TrimPrefix(storage, FilePrefix)), nil
	}
}

// Upload copies r into the artifact name. A failed copy leaves no artifact behind.
func Upload(ctx context.Context, store Store, name string, r io.Reader) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return errors.Trace(err)
	}
	if _, err = io.Copy(w, r); err != nil {
		if a, ok := w.(aborter); ok {
			a.Abort(err)
		} else {
			_ = w.Close()
		}
		return errors.Annotatef(err, "failed to upload %s", name)
	}
	return errors.Trace(w.Close())
}

// aborter discards a write in progress.
type aborter interface {
	Abort(err error)
}

// pipeWriter streams writes into an upload running in the background.
type pipeWriter struct {
	*io.PipeWriter
	errs chan error
}

func newPipeWriter(upload func(r io.Reader) error) *pipeWriter {
	pr, pw := io.Pipe()
	w := &pipeWriter{PipeWriter: pw, errs: make(chan error, 1)}
	go func() {
		err := upload(pr)
		_ = pr.CloseWithError(err)
		w.errs <- err
	}()
	return w
}

// Close waits for the upload and returns its error.
func (w *pipeWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(<-w.errs)
}

func (w *pipeWriter) Abort(err error) {
	_ = w.PipeWriter.CloseWithError(err)
	<-w.errs
}

func splitURL(rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.Trace(err)
	}
	if parsed.Host == "" {
		return "", "", errors.NotValidf("storage %s without bucket", rawURL)
	}
	return parsed.Host, strings.Trim(parsed.Path, "/"), nil
}

// objectKey joins the prefix and an artifact name with slashes on every platform.
func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func trimPrefix(key, prefix string) string {
	name := strings.TrimPrefix(key, prefix)
	return strings.TrimPrefix(name, "/")
}
