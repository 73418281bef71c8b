// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curioloop/coordinate/coord"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

// linearTable builds y = 1 + 2·a - b exactly.
func linearTable() string {
	var sb strings.Builder
	sb.WriteString("a,y,b\n")
	for i := 0; i < 20; i++ {
		a := float64(i%7) - 3
		b := float64(i%5) * 0.5
		fmt.Fprintf(&sb, "%g,%g,%g\n", a, 1+2*a-b, b)
	}
	return sb.String()
}

func TestReadCSV(t *testing.T) {
	ds, err := readCSV(strings.NewReader("a, b ,y\n1,2,3\n4,5,6\n"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ds.features)
	assert.Equal(t, "y", ds.target)
	assert.Equal(t, []float64{3, 6}, ds.y)
	assert.Equal(t, 5.0, ds.x.At(1, 1))

	ds, err = readCSV(strings.NewReader("a,b,y\n1,2,3\n4,5,6\n"), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "y"}, ds.features)
	assert.Equal(t, []float64{1, 4}, ds.y)
	assert.Equal(t, 6.0, ds.x.At(1, 1))

	for name, input := range map[string]string{
		"empty":   "",
		"header":  "a,y\n",
		"single":  "y\n1\n",
		"ragged":  "a,y\n1,2\n3\n",
		"numeric": "a,y\n1,two\n",
	} {
		_, err = readCSV(strings.NewReader(input), "")
		assert.Error(t, err, name)
	}
	_, err = readCSV(strings.NewReader("a,y\n1,2\n"), "z")
	assert.ErrorContains(t, err, `"z"`)
}

func TestLoadOptions(t *testing.T) {
	reg := coord.NewRegistry()
	require.NoError(t, loadOptions(strings.NewReader("coord skip tol: 1e-6\ncoord iteration limit: 1500\nprint level: 0\n"), reg))

	tol, err := reg.Real(coord.OptSkipTol)
	require.NoError(t, err)
	assert.Equal(t, 1e-6, tol)
	limit, err := reg.Int(coord.OptIterLimit)
	require.NoError(t, err)
	assert.Equal(t, 1500, limit)

	// YAML reads 1e6 as a float
	require.NoError(t, loadOptions(strings.NewReader("coord iteration limit: 1e6\n"), reg))
	limit, err = reg.Int(coord.OptIterLimit)
	require.NoError(t, err)
	assert.Equal(t, 1000000, limit)
	assert.ErrorIs(t, loadOptions(strings.NewReader("coord iteration limit: 2.5\n"), reg), coord.ErrInvalidOption)

	require.NoError(t, loadOptions(strings.NewReader(""), reg))
	assert.ErrorIs(t, loadOptions(strings.NewReader("newton step limit: 1\n"), reg), coord.ErrMissingOption)
	assert.ErrorIs(t, loadOptions(strings.NewReader("coord skip max: 2\n"), reg), coord.ErrInvalidOption)
	assert.Error(t, loadOptions(strings.NewReader("- a\n- b\n"), reg))
}

func TestBuildRegistry(t *testing.T) {
	config := writeFile(t, "opts.yaml", "coord skip min: 3\ncoord restart: 10\n")
	reg, err := buildRegistry(config, []string{"coord restart = 20"})
	require.NoError(t, err)

	v, err := reg.Int(coord.OptSkipMin)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	v, err = reg.Int(coord.OptRestart)
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = buildRegistry(config, []string{"coord restart"})
	assert.Error(t, err)
	_, err = buildRegistry(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestFitCommand(t *testing.T) {
	data := writeFile(t, "linear.csv", linearTable())
	config := writeFile(t, "opts.yaml", "coord convergence tol: 1e-10\ncoord skip tol: 1e-10\nprint level: 0\n")

	stdout, stderr, err := execute(t, "fit", "--data", data, "--target", "y", "--lambda", "0", "--config", config)
	require.NoError(t, err)
	assert.Contains(t, stderr, `"msg":"Fit complete"`)
	assert.Contains(t, stderr, `"status":"CONVERGENCE`)

	coef := map[string]float64{}
	for _, m := range regexp.MustCompile(`(?m)^(\S+)\s+(\S+)$`).FindAllStringSubmatch(stdout, -1) {
		if m[1] == "TERM" {
			continue
		}
		v, err := strconv.ParseFloat(m[2], 64)
		require.NoError(t, err)
		coef[m[1]] = v
	}
	require.Len(t, coef, 3)
	assert.InDelta(t, 1, coef["(intercept)"], 1e-6)
	assert.InDelta(t, 2, coef["a"], 1e-6)
	assert.InDelta(t, -1, coef["b"], 1e-6)

	stdout, _, err = execute(t, "fit", "--data", data, "--target", "y", "--lambda", "0",
		"--nonneg", "--config", config, "--set", "print level=1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "RUNNING THE COORDINATE DESCENT CODE")
	assert.Regexp(t, `(?m)^b\s+0$`, stdout)
}

func TestFitCommandErrors(t *testing.T) {
	data := writeFile(t, "linear.csv", linearTable())

	_, _, err := execute(t, "fit")
	assert.ErrorContains(t, err, "data")
	_, _, err = execute(t, "fit", "--data", data, "--family", "poisson")
	assert.ErrorContains(t, err, "poisson")
	_, _, err = execute(t, "fit", "--data", data, "--set", "coord skip min=0")
	assert.ErrorIs(t, err, coord.ErrInvalidOption)
	_, _, err = execute(t, "fit", "--data", data, "--log-level", "loud")
	assert.ErrorContains(t, err, "loud")
	_, _, err = execute(t, "fit", "--data", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestOptionsCommand(t *testing.T) {
	stdout, _, err := execute(t, "options", "--set", "coord skip min=2")
	require.NoError(t, err)
	for _, name := range coord.NewRegistry().Names() {
		assert.Contains(t, stdout, name)
	}
	assert.Regexp(t, `coord skip min\s+2\s+5`, stdout)
}
