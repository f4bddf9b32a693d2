// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package main is the pytf scheduler CLI: run starts the tick loop, and
// status/mark/hold/remove_hold/rerun are the operator actions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/fsutil"
)

var (
	cfgFile       string
	flagLogDir    string
	flagFamilyDir string
	flagJobDir    string
	flagInstrDir  string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pytf",
		Short: "pytf is a calendar-aware, dependency-driven batch job scheduler",
		Long: `pytf schedules jobs grouped into families that run on calendar-defined
days, dependent on time-of-day, sibling jobs, external jobs, or shared
tokens, and drives them to completion through a filesystem-backed tick loop.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to the pytf TOML config file")
	cmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "", "override config log_dir")
	cmd.PersistentFlags().StringVar(&flagFamilyDir, "family-dir", "", "override config family_dir")
	cmd.PersistentFlags().StringVar(&flagJobDir, "job-dir", "", "override config job_dir")
	cmd.PersistentFlags().StringVar(&flagInstrDir, "instructions-dir", "", "override config instructions_dir")

	cmd.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newMarkCmd(),
		newHoldCmd(),
		newRemoveHoldCmd(),
		newRerunCmd(),
	)

	return cmd
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile, config.Flags{
		LogDir:          flagLogDir,
		FamilyDir:       flagFamilyDir,
		JobDir:          flagJobDir,
		InstructionsDir: flagInstrDir,
	})
}

// stampTodaysLogDir resolves cfg.TodaysLogDir against the real wall clock,
// for operator-action subcommands that never run the tick loop themselves.
func stampTodaysLogDir(cfg *config.Config) error {
	now, err := (clock.Real{}).Now(cfg.PrimaryTZ)
	if err != nil {
		return err
	}
	cfg.TodaysLogDir = fsutil.DatedSubdir(cfg.LogDir, now)
	return nil
}
