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

package dataset

import (
	"context"
	"io"
	"path"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/gorse-movies/common/log"
	"github.com/gorse-io/gorse-movies/common/parallel"
	"github.com/gorse-io/gorse-movies/config"
	"github.com/gorse-io/gorse-movies/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Artifacts lists the files of a dataset in loading order.
func Artifacts(cfg config.DatasetConfig) []string {
	return []string{cfg.RatingsFile, cfg.ItemSimilarityFile, cfg.FeatureSimilarityFile, cfg.IndexFile}
}

// Load reads all artifacts from the store and assembles a snapshot. Artifacts are
// parsed concurrently by at most cfg.LoadJobs workers.
func Load(ctx context.Context, store blob.Store, cfg config.DatasetConfig) (*Dataset, error) {
	start := time.Now()
	files := Artifacts(cfg)
	names, err := store.List(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "failed to list artifacts")
	}
	existing := mapset.NewThreadUnsafeSet(names...)
	for _, file := range files {
		if !existing.Contains(file) {
			return nil, errors.NotFoundf("artifact %s", file)
		}
	}

	var (
		ratings    *Table
		similarity *Table
		features   [][]float64
		movies     *Index
	)
	err = parallel.Parallel(ctx, len(files), cfg.LoadJobs, func(ctx context.Context, jobId int) error {
		name := files[jobId]
		r, err := store.Open(ctx, name)
		if err != nil {
			return errors.Annotatef(err, "failed to open %s", name)
		}
		defer r.Close()
		switch jobId {
		case 0:
			ratings, err = ReadTable(r)
		case 1:
			similarity, err = ReadTable(r)
		case 2:
			features, err = readFeatures(name, r)
		case 3:
			movies, err = ReadIndexMap(r)
		}
		if err != nil {
			return errors.Annotatef(err, "failed to parse %s", name)
		}
		log.Logger().Info("artifact loaded", zap.String("file", name))
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	dataset, err := NewDataset(ratings, similarity, features, movies)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("dataset loaded",
		zap.Int("n_users", dataset.CountUsers()),
		zap.Int("n_items", dataset.CountItems()),
		zap.Int("n_movies", dataset.CountMovies()),
		zap.Duration("used_time", time.Since(start)))
	return dataset, nil
}

func readFeatures(name string, r io.Reader) ([][]float64, error) {
	if path.Ext(name) == ".csv" {
		return ReadMatrixCSV(r)
	}
	return ReadNpy(r)
}
