// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// dataset is a numeric table split into features and response.
type dataset struct {
	features []string
	target   string
	x        *mat.Dense
	y        []float64
}

// readCSV parses a CSV table with a header row. The target column defaults to the last one.
func readCSV(r io.Reader, target string) (*dataset, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, errors.New("csv needs a header and at least one row")
	}

	header := rows[0]
	if len(header) < 2 {
		return nil, errors.New("csv needs at least one feature and a target column")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	ty := len(header) - 1
	if target != "" {
		if ty = slices.Index(header, target); ty < 0 {
			return nil, fmt.Errorf("target column %q not found", target)
		}
	}

	ds := &dataset{
		target: header[ty],
		x:      mat.NewDense(len(rows)-1, len(header)-1, nil),
		y:      make([]float64, len(rows)-1),
	}
	for j, name := range header {
		if j != ty {
			ds.features = append(ds.features, name)
		}
	}

	for i, row := range rows[1:] {
		col := 0
		for j, cell := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i+1, header[j], err)
			}
			if j == ty {
				ds.y[i] = v
				continue
			}
			ds.x.Set(i, col, v)
			col++
		}
	}
	return ds, nil
}
