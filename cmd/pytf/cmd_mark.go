// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/ops"
)

func newMarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark <family> <job> <error_code>",
		Short: "Override a job's error_code, preserving the prior value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			newCode, err := strconv.Atoi(args[2])
			if err != nil {
				return err
			}
			if err := stampTodaysLogDir(cfg); err != nil {
				return err
			}

			return ops.Mark(cfg, args[0], args[1], newCode, clock.Real{})
		},
	}
}
