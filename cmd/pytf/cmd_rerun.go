// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"

	"github.com/taskforest/pytf/internal/ops"
)

func newRerunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rerun <family> <job>",
		Short: "Archive a completed job's info file and release it to run again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := stampTodaysLogDir(cfg); err != nil {
				return err
			}
			return ops.Rerun(cfg, args[0], args[1])
		},
	}
}
