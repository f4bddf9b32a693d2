// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/fsutil"
	"github.com/taskforest/pytf/internal/jobmodel"
	"github.com/taskforest/pytf/internal/jobresult"
	"github.com/taskforest/pytf/internal/schedule"
)

func newStatusCmd() *cobra.Command {
	var family string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print today's job statuses as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			clk := clock.Real{}
			now, err := clk.Now(cfg.PrimaryTZ)
			if err != nil {
				return err
			}
			cfg.TodaysFamilyDir = fsutil.DatedSubdir(cfg.FamilyDir, now)
			cfg.TodaysLogDir = fsutil.DatedSubdir(cfg.LogDir, now)

			families, err := jobmodel.FamiliesFromDir(cfg.TodaysFamilyDir, cfg)
			if err != nil {
				return err
			}
			_, world, err := jobresult.ScanLogDir(cfg.TodaysLogDir)
			if err != nil {
				return err
			}
			held, err := jobresult.HeldJobs(cfg.TodaysLogDir)
			if err != nil {
				return err
			}
			released, err := jobresult.ReleasedJobs(cfg.TodaysLogDir)
			if err != nil {
				return err
			}

			out, err := schedule.Run(cfg, families, world, held, released, clk, nil)
			if err != nil {
				return err
			}

			flat := out.Flat
			byFamily := out.ByFamily
			if family != "" {
				flat = out.ByFamily[family]
				byFamily = map[string][]*jobresult.Result{family: out.ByFamily[family]}
			}

			envelope := map[string]interface{}{
				"status": map[string]interface{}{
					"flat_list": flat,
					"family":    byFamily,
				},
			}

			enc, err := json.MarshalIndent(envelope, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(enc))
			return nil
		},
	}

	cmd.Flags().StringVar(&family, "family", "", "restrict output to one family")
	// --json is accepted for compatibility with older operator scripts;
	// JSON is the only output format this command ever produces.
	cmd.Flags().BoolVar(&jsonOutput, "json", true, "print status as JSON")
	return cmd
}
