// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/curioloop/coordinate/coord"
)

func newOptionsCmd() *cobra.Command {
	var config string
	var sets []string

	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the optimizer options",
		Long:  `Prints every optimizer option with its current value, default and valid range.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := buildRegistry(config, sets)
			if err != nil {
				return err
			}
			return reg.Describe(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&config, "config", "", "YAML file of optimizer options")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Override an optimizer option (name=value)")
	return cmd
}

// buildRegistry applies the options file then the command line overrides on top of the defaults.
func buildRegistry(config string, sets []string) (*coord.Registry, error) {
	reg := coord.NewRegistry()
	if config != "" {
		f, err := os.Open(config)
		if err != nil {
			return nil, fmt.Errorf("failed to open config: %w", err)
		}
		defer f.Close()
		if err = loadOptions(f, reg); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", config, err)
		}
	}
	for _, kv := range sets {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("option override %q is not name=value", kv)
		}
		if err := reg.Set(strings.TrimSpace(name), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// loadOptions reads a flat YAML mapping from option name to value.
func loadOptions(r io.Reader, reg *coord.Registry) error {
	var doc map[string]any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := reg.Set(name, fmt.Sprint(doc[name])); err != nil {
			return err
		}
	}
	return nil
}
