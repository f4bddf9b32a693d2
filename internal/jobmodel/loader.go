// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package jobmodel

import (
	"sort"

	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/fsutil"
)

// FamiliesFromDir parses every non-ignored text file in dir into a Family,
// in filename-sorted order, matching the main loop's per-tick family scan.
func FamiliesFromDir(dir string, cfg *config.Config) ([]*Family, error) {
	files, err := fsutil.TextFilesInDir(dir, cfg.IgnoreRegex)
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	families := make([]*Family, 0, len(files))
	for _, f := range files {
		fam, err := ParseFamily(f.Name, f.Content, cfg)
		if err != nil {
			return nil, err
		}
		families = append(families, fam)
	}
	return families, nil
}

// AllInternalJobs returns every Job node across every forest in the family.
func (fam *Family) AllInternalJobs() []*Job {
	var out []*Job
	for _, f := range fam.Forests {
		out = append(out, f.AllInternalJobs()...)
	}
	return out
}
