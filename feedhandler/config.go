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
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"

	"cme-md-go/constants"
)

// Config is the full feed-handler configuration. Zero values are filled
// in by ApplyDefaults; a YAML file can override any field and CLI flags
// override the file.
type Config struct {
	Interface string `yaml:"interface"`

	Incremental struct {
		Group string `yaml:"group"`
		Port  int    `yaml:"port"`
	} `yaml:"incremental"`

	Snapshot struct {
		Group string `yaml:"group"`
		Port  int    `yaml:"port"`
	} `yaml:"snapshot"`

	Output struct {
		Group string `yaml:"group"`
		Port  int    `yaml:"port"`
		TTL   int    `yaml:"ttl"`
	} `yaml:"output"`

	ConflationIntervalMs int `yaml:"conflation_interval_ms"`
	RecoveryTimeoutMs    int `yaml:"recovery_timeout_ms"`
}

// DefaultConfig returns the standard multicast layout and timing.
func DefaultConfig() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Interface == "" {
		c.Interface = "0.0.0.0"
	}
	if c.Incremental.Group == "" {
		c.Incremental.Group = constants.IncrementalGroup
	}
	if c.Incremental.Port == 0 {
		c.Incremental.Port = constants.IncrementalPort
	}
	if c.Snapshot.Group == "" {
		c.Snapshot.Group = constants.SnapshotGroup
	}
	if c.Snapshot.Port == 0 {
		c.Snapshot.Port = constants.SnapshotPort
	}
	if c.Output.Group == "" {
		c.Output.Group = constants.OutputGroup
	}
	if c.Output.Port == 0 {
		c.Output.Port = constants.OutputPort
	}
	if c.Output.TTL == 0 {
		c.Output.TTL = 1
	}
	if c.ConflationIntervalMs == 0 {
		c.ConflationIntervalMs = constants.DefaultConflationIntervalMs
	}
	if c.RecoveryTimeoutMs == 0 {
		c.RecoveryTimeoutMs = constants.DefaultRecoveryTimeoutMs
	}
}

// LoadConfig reads a YAML config file, applies defaults, and validates.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks group addresses, ports, and timing.
func (c *Config) Validate() error {
	for _, g := range []struct {
		name  string
		group string
		port  int
	}{
		{"incremental", c.Incremental.Group, c.Incremental.Port},
		{"snapshot", c.Snapshot.Group, c.Snapshot.Port},
		{"output", c.Output.Group, c.Output.Port},
	} {
		ip := net.ParseIP(g.group)
		if ip == nil || !ip.IsMulticast() {
			return fmt.Errorf("%s group %q is not a multicast address", g.name, g.group)
		}
		if g.port <= 0 || g.port > 65535 {
			return fmt.Errorf("%s port %d out of range", g.name, g.port)
		}
	}
	if net.ParseIP(c.Interface) == nil {
		return fmt.Errorf("interface %q is not an IP address", c.Interface)
	}
	if c.Output.TTL < 1 || c.Output.TTL > 255 {
		return fmt.Errorf("output TTL %d out of range [1, 255]", c.Output.TTL)
	}
	if c.ConflationIntervalMs <= 0 {
		return fmt.Errorf("conflation interval must be positive")
	}
	if c.RecoveryTimeoutMs <= 0 {
		return fmt.Errorf("recovery timeout must be positive")
	}
	return nil
}
