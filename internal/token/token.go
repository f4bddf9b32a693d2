// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package token implements the token accounting protocol: a persisted
// document of current token holders, consumed once per tick and reconciled
// at main-loop startup, so that at most config.tokens[name] jobs hold a given
// named token at once.
package token

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/fsutil"
	"github.com/taskforest/pytf/internal/jobresult"
)

// Holder is one entry of the token document's "token" array-of-tables.
type Holder struct {
	TokenName  string `toml:"token_name"`
	FamilyName string `toml:"family_name"`
	JobName    string `toml:"job_name"`
}

// Document is the token_usage.toml file's decoded shape.
type Document struct {
	Token []Holder `toml:"token"`
}

func docPath(cfg *config.Config) string {
	return filepath.Join(cfg.LogDir, "token_usage.toml")
}

// Current loads the current token document, returning an empty Document if
// the file does not exist.
func Current(cfg *config.Config) (*Document, error) {
	raw, err := os.ReadFile(docPath(cfg))
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{}, nil
		}
		return nil, err
	}
	var doc Document
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save atomically overwrites the token document, or removes the file when
// doc is nil or empty.
func Save(cfg *config.Config, doc *Document) error {
	path := docPath(cfg)
	if doc == nil || len(doc.Token) == 0 {
		if _, err := os.Stat(path); err == nil {
			return os.Remove(path)
		}
		return nil
	}
	raw, err := toml.Marshal(doc)
	if err != nil {
		return err
	}
	return fsutil.AtomicWriteFile(path, raw, 0o644)
}

// ConsumeFromDoc attempts to append a holder entry for every name in
// tokenNames against doc, honoring each token's configured capacity. It
// returns the augmented document on full success, or nil if any requested
// token is unknown or already at capacity.
func ConsumeFromDoc(cfg *config.Config, tokenNames []string, doc *Document, family, job string) *Document {
	for _, name := range tokenNames {
		if _, known := cfg.Tokens[name]; !known {
			return nil
		}
	}

	usage := map[string]int{}
	out := &Document{}
	for _, h := range doc.Token {
		usage[h.TokenName]++
		out.Token = append(out.Token, h)
	}

	for _, name := range tokenNames {
		capacity := cfg.Tokens[name]
		if usage[name] < capacity {
			out.Token = append(out.Token, Holder{TokenName: name, FamilyName: family, JobName: job})
			usage[name]++
		} else {
			return nil
		}
	}

	return out
}

// UpdateUsage drops any holder whose referenced info file has completed
// (has an error_code), reconciling the persisted document against today's
// log directory. Run once at main-loop startup.
func UpdateUsage(cfg *config.Config) error {
	doc, err := Current(cfg)
	if err != nil {
		return err
	}
	if len(doc.Token) == 0 {
		return nil
	}

	var kept []Holder
	for _, h := range doc.Token {
		files, err := jobresult.InfoFilesFor(cfg.TodaysLogDir, h.FamilyName, h.JobName)
		if err != nil || len(files) != 1 {
			// A holder whose info file is missing or ambiguous cannot be
			// verified as still running; drop it so the token frees rather
			// than leak until end of day.
			continue
		}
		d, err := jobresult.LoadDoc(filepath.Join(cfg.TodaysLogDir, files[0]))
		if err != nil {
			continue
		}
		if d.ToResult().ErrorCode != nil {
			continue // terminal: drop this stale holder
		}
		kept = append(kept, h)
	}

	if len(kept) == 0 {
		return Save(cfg, nil)
	}
	return Save(cfg, &Document{Token: kept})
}
