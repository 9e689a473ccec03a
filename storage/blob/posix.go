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
	"io/fs"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// POSIX keeps artifacts in a local directory.
type POSIX struct {
	dir string
}

func NewPOSIX(dir string) *POSIX {
	return &POSIX{dir: dir}
}

func (p *POSIX) Open(_ context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(p.dir, filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.NotFoundf("artifact %s in %s", name, p.dir)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return file, nil
}

// Create writes into a temporary file renamed over the artifact on Close.
func (p *POSIX) Create(_ context.Context, name string) (io.WriteCloser, error) {
	target := filepath.Join(p.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), os.ModePerm); err != nil {
		return nil, errors.Trace(err)
	}
	file, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &fileWriter{File: file, target: target}, nil
}

type fileWriter struct {
	*os.File
	target string
}

func (w *fileWriter) Close() error {
	if err := w.File.Close(); err != nil {
		_ = os.Remove(w.Name())
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(w.Name(), w.target))
}

func (w *fileWriter) Abort(error) {
	_ = w.File.Close()
	_ = os.Remove(w.Name())
}

// List returns slash separated names of regular files, skipping unfinished writes.
func (p *POSIX) List(_ context.Context) ([]string, error) {
	if _, err := os.Stat(p.dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	var names []string
	err := filepath.WalkDir(p.dir, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || d.Name()[0] == '.' {
			return nil
		}
		name, err := filepath.Rel(p.dir, fullPath)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(name))
		return nil
	})
	return names, errors.Trace(err)
}
