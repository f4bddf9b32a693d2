// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package config loads the scheduler's settings record from TOML, applying
// the precedence defaults -> TOML file -> environment variables (PYTF_*
// prefix) -> explicit CLI flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/taskforest/pytf/internal/parseerr"
)

// Config is the scheduler's immutable settings record.
type Config struct {
	LogDir          string `toml:"log_dir"`
	FamilyDir       string `toml:"family_dir"`
	JobDir          string `toml:"job_dir"`
	InstructionsDir string `toml:"instructions_dir"`

	PrimaryTZ  string `toml:"primary_tz"`
	EndTimeHr  int    `toml:"end_time_hr"`
	EndTimeMin int    `toml:"end_time_min"`
	OnceOnly   bool   `toml:"once_only"`
	RunLocal   bool   `toml:"run_local"`

	NumRetries int `toml:"num_retries"`
	RetrySleep int `toml:"retry_sleep"`

	IgnoreRegex []string            `toml:"ignore_regex"`
	Calendars   map[string][]string `toml:"calendars"`
	Tokens      map[string]int      `toml:"tokens"`

	// Ambient fields needed to run as a deployable service; not part of the
	// CORE's own authority but round-tripped through the same TOML file.
	LogLevel    string `toml:"log_level"`
	LogDriver   string `toml:"log_driver"`
	LogPath     string `toml:"log_path"`
	MetricsAddr string `toml:"metrics_addr"`
	HTTPAddr    string `toml:"http_addr"`

	RedisAddr   string `toml:"redis_addr"`
	RedisAuth   string `toml:"redis_auth"`
	RedisPrefix string `toml:"redis_prefix"`
	RedisQueue  string `toml:"redis_queue"`

	NotifyFrom string `toml:"notify_from"`
	SMTPAddr   string `toml:"smtp_addr"`
	WebhookURL string `toml:"webhook_url"`

	JWTSecret string `toml:"jwt_secret"`

	PanicRobotEnable        bool   `toml:"panic_robot_enable"`
	PanicRobotEnv           string `toml:"panic_robot_env"`
	PanicRobotFeishuEnable  bool   `toml:"panic_robot_feishu_enable"`
	PanicRobotFeishuPushURL string `toml:"panic_robot_feishu_push_url"`

	// TodaysLogDir/TodaysFamilyDir are resolved once per day by the main
	// loop/runner startup sequence, not read from TOML.
	TodaysLogDir    string `toml:"-"`
	TodaysFamilyDir string `toml:"-"`
}

func defaults() *Config {
	return &Config{
		PrimaryTZ:   "UTC",
		EndTimeHr:   23,
		EndTimeMin:  55,
		NumRetries:  0,
		RetrySleep:  1,
		IgnoreRegex: []string{".*~$", `.*\.bak$`, `.*\$$`},
		Calendars:   map[string][]string{},
		Tokens:      map[string]int{},
		LogLevel:    "warn",
		LogDriver:   "stdout",
		RedisPrefix: "pytf",
		RedisQueue:  "pytf:dispatch",
	}
}

// Flags carries explicit CLI flag overrides; zero values mean "not set" and
// are skipped during the override pass.
type Flags struct {
	LogDir          string
	FamilyDir       string
	JobDir          string
	InstructionsDir string
}

// Load reads the TOML file at path (if non-empty), layers PYTF_* environment
// overrides, then explicit CLI flags, and validates required directories.
func Load(path string, flags Flags) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, parseerr.New(parseerr.MsgConfigParsingFailed, err.Error())
		}
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, parseerr.New(parseerr.MsgConfigParsingFailed, err.Error())
		}
	}

	applyEnv(cfg)
	applyFlags(cfg, flags)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("PYTF_LOG_DIR"); ok {
		cfg.LogDir = v
	}
	if v, ok := os.LookupEnv("PYTF_FAMILY_DIR"); ok {
		cfg.FamilyDir = v
	}
	if v, ok := os.LookupEnv("PYTF_JOB_DIR"); ok {
		cfg.JobDir = v
	}
	if v, ok := os.LookupEnv("PYTF_INSTRUCTIONS_DIR"); ok {
		cfg.InstructionsDir = v
	}
	if v, ok := os.LookupEnv("PYTF_PRIMARY_TZ"); ok {
		cfg.PrimaryTZ = v
	}
	if v, ok := os.LookupEnv("PYTF_ONCE_ONLY"); ok {
		cfg.OnceOnly = parseBool(v)
	}
	if v, ok := os.LookupEnv("PYTF_RUN_LOCAL"); ok {
		cfg.RunLocal = parseBool(v)
	}
	if v, ok := os.LookupEnv("PYTF_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("PYTF_REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}
	if v, ok := os.LookupEnv("PYTF_WEBHOOK_URL"); ok {
		cfg.WebhookURL = v
	}
	if v, ok := os.LookupEnv("PYTF_METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	if v, ok := os.LookupEnv("PYTF_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
}

func applyFlags(cfg *Config, flags Flags) {
	if flags.LogDir != "" {
		cfg.LogDir = flags.LogDir
	}
	if flags.FamilyDir != "" {
		cfg.FamilyDir = flags.FamilyDir
	}
	if flags.JobDir != "" {
		cfg.JobDir = flags.JobDir
	}
	if flags.InstructionsDir != "" {
		cfg.InstructionsDir = flags.InstructionsDir
	}
}

func validate(cfg *Config) error {
	if cfg.LogDir == "" {
		return parseerr.New(parseerr.MsgConfigMissingLogDir, "")
	}
	if cfg.FamilyDir == "" {
		return parseerr.New(parseerr.MsgConfigMissingFamilyDir, "")
	}
	if cfg.JobDir == "" {
		return parseerr.New(parseerr.MsgConfigMissingJobDir, "")
	}
	if cfg.InstructionsDir == "" {
		return parseerr.New(parseerr.MsgConfigMissingInstructionDir, "")
	}
	return nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return b
}

// String renders a Config for logging without secrets.
func (c *Config) String() string {
	return fmt.Sprintf("Config{log_dir=%s family_dir=%s job_dir=%s primary_tz=%s run_local=%v}",
		c.LogDir, c.FamilyDir, c.JobDir, c.PrimaryTZ, c.RunLocal)
}
