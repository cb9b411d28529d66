/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads and validates the wol-hookd YAML configuration file.
// Configuration is read once at startup and never reloaded.
package config

import (
	"fmt"
	"net"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/brennie/wake-on-lan-hook/internal/wol"
)

const (
	// DefaultStatusAddress is where health checks and metrics are served.
	DefaultStatusAddress = ":8080"
)

// Hook describes an external command to run on a matched packet.
type Hook struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// Spec converts the hook into the runtime representation.
func (h *Hook) Spec() wol.HookSpec {
	env := make([]string, 0, len(h.Env))
	for k, v := range h.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	return wol.HookSpec{
		Command: h.Command,
		Args:    h.Args,
		Env:     env,
	}
}

// Target is one watched MAC address with an optional per-target hook. A
// target without its own hook uses the global one.
type Target struct {
	MAC  string `yaml:"mac"`
	Hook *Hook  `yaml:"hook,omitempty"`
}

// Config is the full daemon configuration.
type Config struct {
	BindAddress   string   `yaml:"bindAddress,omitempty"`
	Ports         []int    `yaml:"ports,omitempty"`
	StatusAddress string   `yaml:"statusAddress,omitempty"`
	Hook          *Hook    `yaml:"hook,omitempty"`
	Targets       []Target `yaml:"targets"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, validates and applies defaults to raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BindAddress == "" {
		c.BindAddress = "0.0.0.0"
	}
	ip := net.ParseIP(c.BindAddress)
	if ip == nil {
		return fmt.Errorf("invalid bindAddress %q", c.BindAddress)
	}
	// The listener binds udp4; magic packets are an IPv4 broadcast affair.
	if ip.To4() == nil {
		return fmt.Errorf("bindAddress %q is not an IPv4 address", c.BindAddress)
	}

	if len(c.Ports) == 0 {
		c.Ports = []int{wol.DefaultPort}
	}
	seenPorts := make(map[int]bool, len(c.Ports))
	for _, port := range c.Ports {
		if port < 0 || port > 65535 {
			return fmt.Errorf("port %d out of range (must be 0-65535)", port)
		}
		if seenPorts[port] {
			return fmt.Errorf("duplicate port %d", port)
		}
		seenPorts[port] = true
	}

	if c.StatusAddress == "" {
		c.StatusAddress = DefaultStatusAddress
	}

	if len(c.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}

	if c.Hook != nil && c.Hook.Command == "" {
		return fmt.Errorf("global hook has no command")
	}

	seenMACs := make(map[string]bool, len(c.Targets))
	for i, target := range c.Targets {
		mac, err := wol.NormalizeMAC(target.MAC)
		if err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
		if seenMACs[mac] {
			return fmt.Errorf("target %d: duplicate MAC %s", i, mac)
		}
		seenMACs[mac] = true

		if target.Hook != nil && target.Hook.Command == "" {
			return fmt.Errorf("target %s: hook has no command", mac)
		}
		if target.Hook == nil && c.Hook == nil {
			return fmt.Errorf("target %s: no hook configured and no global hook to fall back to", mac)
		}
	}

	return nil
}

// HookFor returns the effective hook for a target: its own if set, otherwise
// the global one. validate guarantees one of them exists.
func (c *Config) HookFor(t Target) *Hook {
	if t.Hook != nil {
		return t.Hook
	}
	return c.Hook
}

// BindIP returns the parsed bind address.
func (c *Config) BindIP() net.IP {
	return net.ParseIP(c.BindAddress)
}

// TargetSet builds the runtime target set from the configured targets.
func (c *Config) TargetSet(set *wol.TargetSet) error {
	for _, target := range c.Targets {
		if err := set.Add(target.MAC, c.HookFor(target).Spec()); err != nil {
			return err
		}
	}
	return nil
}
