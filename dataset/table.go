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
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gorse-io/gorse-movies/common/util"
	"github.com/juju/errors"
)

// Table is a labelled matrix read from a pivot CSV. Missing cells are NaN.
type Table struct {
	Columns []string
	Rows    []string
	Values  [][]float64
}

// ReadTable parses a pivot CSV: the header holds column labels after an ignored first
// cell and every following record holds a row label then one value per column. Empty,
// "NaN" and "nan" cells are missing.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NotValidf("table without header")
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	table := &Table{Columns: header[1:]}
	if dup, ok := findDuplicate(table.Columns); ok {
		return nil, errors.NotValidf("duplicate column %s", dup)
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		values := make([]float64, len(table.Columns))
		for j, cell := range record[1:] {
			if values[j], err = parseCell(cell); err != nil {
				return nil, errors.Annotatef(err, "row %s column %s", record[0], table.Columns[j])
			}
		}
		table.Rows = append(table.Rows, record[0])
		table.Values = append(table.Values, values)
	}
	if dup, ok := findDuplicate(table.Rows); ok {
		return nil, errors.NotValidf("duplicate row %s", dup)
	}
	return table, nil
}

func parseCell(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "NaN" || cell == "nan" {
		return math.NaN(), nil
	}
	value, err := util.ParseFloat[float64](cell)
	if err != nil {
		return 0, errors.NotValidf("value %q", cell)
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, errors.NotValidf("non-finite value %q", cell)
	}
	return value, nil
}

// ReadIndexMap parses a CSV with a header row followed by item_id,dense_index records.
// Dense indices must cover [0, N) exactly once.
func ReadIndexMap(r io.Reader) (*Index, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err == io.EOF {
		return nil, errors.NotValidf("index map without header")
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	var (
		names   []string
		offsets []int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		if len(record) < 2 {
			return nil, errors.NotValidf("index record %v", record)
		}
		offset, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, errors.NotValidf("dense index %q of %s", record[1], record[0])
		}
		names = append(names, strings.TrimSpace(record[0]))
		offsets = append(offsets, offset)
	}
	sorted := make([]string, len(names))
	filled := make([]bool, len(names))
	for i, offset := range offsets {
		if offset < 0 || offset >= len(names) {
			return nil, errors.NotValidf("dense index %d out of range [0, %d)", offset, len(names))
		}
		if filled[offset] {
			return nil, errors.NotValidf("duplicate dense index %d", offset)
		}
		sorted[offset], filled[offset] = names[i], true
	}
	if dup, ok := findDuplicate(sorted); ok {
		return nil, errors.NotValidf("duplicate item %s", dup)
	}
	index := NewIndex()
	for _, name := range sorted {
		index.Add(name)
	}
	return index, nil
}

// ReadMatrixCSV parses a header-less CSV of finite values.
func ReadMatrixCSV(r io.Reader) ([][]float64, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	var matrix [][]float64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		row := make([]float64, len(record))
		for j, cell := range record {
			value, err := util.ParseFloat[float64](strings.TrimSpace(cell))
			if err != nil {
				return nil, errors.NotValidf("value %q at (%d, %d)", cell, len(matrix), j)
			}
			if isNonFinite(value) {
				return nil, errors.NotValidf("non-finite value at (%d, %d)", len(matrix), j)
			}
			row[j] = value
		}
		matrix = append(matrix, row)
	}
	return matrix, nil
}

func isNonFinite(value float64) bool {
	return math.IsNaN(value) || math.IsInf(value, 0)
}

func findDuplicate(names []string) (string, bool) {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			return name, true
		}
		seen[name] = struct{}{}
	}
	return "", false
}
