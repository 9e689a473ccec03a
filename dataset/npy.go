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
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

const npyMagic = "\x93NUMPY"

var (
	npyDescr   = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	npyFortran = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	npyShape   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// ReadNpy parses a two-dimensional little-endian float32 or float64 array stored in
// NumPy format version 1, 2 or 3. Values are widened to float64.
func ReadNpy(r io.Reader) ([][]float64, error) {
	size, sized := remainingBytes(r)
	reader := bufio.NewReader(r)
	preamble := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(reader, preamble); err != nil {
		return nil, errors.NotValidf("npy preamble")
	}
	if string(preamble[:len(npyMagic)]) != npyMagic {
		return nil, errors.NotValidf("npy magic %q", preamble[:len(npyMagic)])
	}
	var headerLen, lenSize int
	switch major := preamble[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(reader, binary.LittleEndian, &n); err != nil {
			return nil, errors.Trace(err)
		}
		headerLen, lenSize = int(n), 2
	case 2, 3:
		var n uint32
		if err := binary.Read(reader, binary.LittleEndian, &n); err != nil {
			return nil, errors.Trace(err)
		}
		headerLen, lenSize = int(n), 4
	default:
		return nil, errors.NotSupportedf("npy version %d", major)
	}
	if sized && int64(headerLen) > size {
		return nil, errors.NotValidf("npy header of %d bytes", headerLen)
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, errors.NotValidf("npy header")
	}
	descr, rows, cols, err := parseNpyHeader(string(header))
	if err != nil {
		return nil, errors.Trace(err)
	}

	var width int
	switch descr {
	case "<f4":
		width = 4
	case "<f8":
		width = 8
	default:
		return nil, errors.NotSupportedf("npy dtype %s", descr)
	}
	if cols > 0 && rows > math.MaxInt/cols/width {
		return nil, errors.NotValidf("npy shape (%d, %d)", rows, cols)
	}
	rowSize := cols * width
	if remaining := size - int64(len(preamble)+lenSize+headerLen); sized && int64(rows)*int64(rowSize) > remaining {
		return nil, errors.NotValidf("npy shape (%d, %d) with %d bytes of data", rows, cols, remaining)
	}

	// rows are allocated only after their bytes arrive
	matrix := make([][]float64, 0, min(rows, 1024))
	for i := 0; i < rows; i++ {
		buf, err := io.ReadAll(io.LimitReader(reader, int64(rowSize)))
		if err != nil {
			return nil, errors.Annotatef(err, "npy row %d", i)
		} else if len(buf) < rowSize {
			return nil, errors.Annotatef(io.ErrUnexpectedEOF, "npy row %d", i)
		}
		row := make([]float64, cols)
		for j := range row {
			if width == 4 {
				row[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:])))
			} else {
				row[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf[j*8:]))
			}
			if isNonFinite(row[j]) {
				return nil, errors.NotValidf("non-finite value at (%d, %d)", i, j)
			}
		}
		matrix = append(matrix, row)
	}
	return matrix, nil
}

// remainingBytes reports the unread size of readers that know it.
func remainingBytes(r io.Reader) (int64, bool) {
	switch r := r.(type) {
	case interface{ Len() int }:
		return int64(r.Len()), true
	case *os.File:
		info, err := r.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return 0, false
		}
		offset, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, false
		}
		return info.Size() - offset, true
	}
	return 0, false
}

func parseNpyHeader(header string) (descr string, rows, cols int, err error) {
	m := npyDescr.FindStringSubmatch(header)
	if m == nil {
		return "", 0, 0, errors.NotValidf("npy header %q", header)
	}
	descr = m[1]
	if m = npyFortran.FindStringSubmatch(header); m == nil {
		return "", 0, 0, errors.NotValidf("npy header %q", header)
	} else if m[1] == "True" {
		return "", 0, 0, errors.NotSupportedf("fortran order")
	}
	if m = npyShape.FindStringSubmatch(header); m == nil {
		return "", 0, 0, errors.NotValidf("npy header %q", header)
	}
	var dims []int
	for _, field := range strings.Split(m[1], ",") {
		if field = strings.TrimSpace(field); field == "" {
			continue
		}
		dim, err := strconv.Atoi(field)
		if err != nil || dim < 0 {
			return "", 0, 0, errors.NotValidf("npy shape %q", m[1])
		}
		dims = append(dims, dim)
	}
	if len(dims) != 2 {
		return "", 0, 0, errors.NotValidf("npy shape %v, expected two dimensions", dims)
	}
	return descr, dims[0], dims[1], nil
}
