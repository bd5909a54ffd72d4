/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package feedhandler

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_MatchesFeedContract(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Incremental.Group != "239.2.1.1" || cfg.Incremental.Port != 40001 {
		t.Errorf("incremental = %s:%d", cfg.Incremental.Group, cfg.Incremental.Port)
	}
	if cfg.Snapshot.Group != "239.2.1.2" || cfg.Snapshot.Port != 40002 {
		t.Errorf("snapshot = %s:%d", cfg.Snapshot.Group, cfg.Snapshot.Port)
	}
	if cfg.Output.Group != "239.2.1.3" || cfg.Output.Port != 40003 {
		t.Errorf("output = %s:%d", cfg.Output.Group, cfg.Output.Port)
	}
	if cfg.ConflationIntervalMs != 100 || cfg.RecoveryTimeoutMs != 5000 {
		t.Errorf("timing = %d/%d", cfg.ConflationIntervalMs, cfg.RecoveryTimeoutMs)
	}
	if cfg.Output.TTL != 1 {
		t.Errorf("TTL = %d, want 1", cfg.Output.TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unicast group", func(c *Config) { c.Incremental.Group = "10.0.0.1" }},
		{"garbage group", func(c *Config) { c.Snapshot.Group = "not-an-ip" }},
		{"port out of range", func(c *Config) { c.Output.Port = 70000 }},
		{"TTL out of range", func(c *Config) { c.Output.TTL = 256 }},
		{"bad interface", func(c *Config) { c.Interface = "eth0" }},
		{"negative conflation", func(c *Config) { c.ConflationIntervalMs = -1 }},
		{"negative recovery timeout", func(c *Config) { c.RecoveryTimeoutMs = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.yaml")
	yaml := `
interface: 127.0.0.1
incremental:
  group: 239.9.9.1
conflation_interval_ms: 250
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Interface != "127.0.0.1" {
		t.Errorf("interface = %q", cfg.Interface)
	}
	if cfg.Incremental.Group != "239.9.9.1" {
		t.Errorf("group = %q", cfg.Incremental.Group)
	}
	if cfg.Incremental.Port != 40001 {
		t.Errorf("unset port should default: %d", cfg.Incremental.Port)
	}
	if cfg.ConflationIntervalMs != 250 {
		t.Errorf("conflation = %d", cfg.ConflationIntervalMs)
	}
}

func TestLoadConfig_MissingFileFails(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
