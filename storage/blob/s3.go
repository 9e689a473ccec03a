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

	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/config"
	"github.com/juju/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// S3 keeps artifacts in an S3 compatible bucket.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3(cfg config.S3Config, bucket, prefix string) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "failed to connect to %s", cfg.Endpoint)
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := objectKey(s.prefix, name)
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.convertError(err, name)
	}
	// GetObject is lazy
	if _, err = object.Stat(); err != nil {
		_ = object.Close()
		return nil, s.convertError(err, name)
	}
	return object, nil
}

func (s *S3) convertError(err error, name string) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errors.NotFoundf("artifact %s in s3://%s/%s", name, s.bucket, s.prefix)
	}
	return errors.Trace(err)
}

func (s *S3) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	key := objectKey(s.prefix, name)
	return newPipeWriter(func(r io.Reader) error {
		info, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{})
		if err != nil {
			log.Logger().Error("failed to upload artifact to S3", zap.String("key", key), zap.Error(err))
			return errors.Trace(err)
		}
		log.Logger().Debug("artifact uploaded to S3", zap.String("key", key), zap.Int64("size", info.Size))
		return nil
	}), nil
}

func (s *S3) List(ctx context.Context) ([]string, error) {
	var names []string
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, errors.Trace(object.Err)
		}
		if name := trimPrefix(object.Key, s.prefix); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
