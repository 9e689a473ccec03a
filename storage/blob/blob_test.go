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
	"strings"
	"testing"

	"github.com/gorse-io/gorse-movies/config"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore checks the behaviour every backend shares.
func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	// write artifacts
	w, err := store.Create(ctx, "movie_indices.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("movieId,index\n"))
	assert.NoError(t, err)
	_, err = w.Write([]byte("1,0\n"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, Upload(ctx, store, "npy/cosine_similarity_matrix.npy", strings.NewReader("\x93NUMPY")))

	// read artifacts
	r, err := store.Open(ctx, "movie_indices.csv")
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "movieId,index\n1,0\n", string(content))
	assert.NoError(t, r.Close())
	r, err = store.Open(ctx, "npy/cosine_similarity_matrix.npy")
	require.NoError(t, err)
	content, err = io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "\x93NUMPY", string(content))
	assert.NoError(t, r.Close())

	// list artifacts
	names, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Subset(t, names, []string{"movie_indices.csv", "npy/cosine_similarity_matrix.npy"})

	// missing artifact
	_, err = store.Open(ctx, "missing.csv")
	assert.True(t, errors.Is(err, errors.NotFound), err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk failure")
}

func TestSplitURL(t *testing.T) {
	bucket, prefix, err := splitURL("s3://movies/dataset/v1/")
	assert.NoError(t, err)
	assert.Equal(t, "movies", bucket)
	assert.Equal(t, "dataset/v1", prefix)

	bucket, prefix, err = splitURL("gcs://movies")
	assert.NoError(t, err)
	assert.Equal(t, "movies", bucket)
	assert.Empty(t, prefix)

	_, _, err = splitURL("s3:///dataset")
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestNewStore(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Dataset.Storage = t.TempDir()
	store, err := NewStore(cfg)
	assert.NoError(t, err)
	assert.IsType(t, &POSIX{}, store)

	cfg.Dataset.Storage = "file://" + t.TempDir()
	store, err = NewStore(cfg)
	assert.NoError(t, err)
	assert.IsType(t, &POSIX{}, store)

	cfg.Dataset.Storage = "s3://movies/dataset"
	cfg.S3.Endpoint = "localhost:9000"
	store, err = NewStore(cfg)
	assert.NoError(t, err)
	assert.IsType(t, &S3{}, store)
	assert.Equal(t, "dataset", store.(*S3).prefix)

	// azure without credentials
	cfg.Dataset.Storage = "azblob://movies/dataset"
	_, err = NewStore(cfg)
	assert.True(t, errors.Is(err, errors.NotValid))

	cfg.Dataset.Storage = "ftp://movies/dataset"
	_, err = NewStore(cfg)
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "dataset/a.csv", objectKey("dataset", "a.csv"))
	assert.Equal(t, "a.csv", objectKey("", "a.csv"))
	assert.Equal(t, "a.csv", trimPrefix("dataset/a.csv", "dataset"))
	assert.Equal(t, "a.csv", trimPrefix("a.csv", ""))
}

func TestPipeWriter(t *testing.T) {
	var uploaded strings.Builder
	w := newPipeWriter(func(r io.Reader) error {
		_, err := io.Copy(&uploaded, r)
		return err
	})
	_, err := w.Write([]byte("1,0.5\n"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.Equal(t, "1,0.5\n", uploaded.String())

	// upload failure is returned by Close
	w = newPipeWriter(func(r io.Reader) error {
		return errors.New("bucket not found")
	})
	assert.ErrorContains(t, w.Close(), "bucket not found")

	// aborted upload sees the error
	var uploadErr error
	w = newPipeWriter(func(r io.Reader) error {
		_, uploadErr = io.ReadAll(r)
		return uploadErr
	})
	w.Abort(errors.New("disk failure"))
	assert.ErrorContains(t, uploadErr, "disk failure")
}
