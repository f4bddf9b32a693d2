// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"

	"github.com/taskforest/pytf/internal/ops"
)

func newHoldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hold <family> <job>",
		Short: "Hold a job, preventing dispatch until released",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := stampTodaysLogDir(cfg); err != nil {
				return err
			}
			return ops.Hold(cfg, args[0], args[1])
		},
	}
}

func newRemoveHoldCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove_hold <family> <job>",
		Aliases: []string{"release_dependencies"},
		Short:   "Release a job, forcing it to Released status regardless of dependencies",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := stampTodaysLogDir(cfg); err != nil {
				return err
			}
			return ops.RemoveHold(cfg, args[0], args[1])
		},
	}
}

