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

package wol

import (
	"fmt"
	"net"
	"sync"

	"github.com/go-logr/logr"
)

// HookSpec is the external command to run when a watched MAC is matched.
// The matched address is appended as the final argument and exported as
// WOL_MAC in the child environment.
type HookSpec struct {
	Command string
	Args    []string
	Env     []string // extra KEY=VALUE pairs
}

// TargetSet maps watched MAC addresses (canonical lowercase colon-hex) to
// their hook commands. It is populated once at startup and read-only after.
type TargetSet struct {
	log   logr.Logger
	mu    sync.RWMutex
	hooks map[string]HookSpec
}

// NewTargetSet creates an empty target set.
func NewTargetSet(log logr.Logger) *TargetSet {
	return &TargetSet{
		log:   log,
		hooks: make(map[string]HookSpec),
	}
}

// Add registers a hook for a MAC address. The address may be in any form
// net.ParseMAC accepts; it is stored in canonical form. Duplicate addresses
// are rejected.
func (s *TargetSet) Add(mac string, hook HookSpec) error {
	canonical, err := NormalizeMAC(mac)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.hooks[canonical]; exists {
		return fmt.Errorf("duplicate target MAC %s", canonical)
	}
	s.hooks[canonical] = hook

	s.log.V(1).Info("Watching MAC address", "mac", canonical, "command", hook.Command)
	return nil
}

// Lookup returns the hook for a MAC address, if it is watched.
func (s *TargetSet) Lookup(mac string) (HookSpec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hook, found := s.hooks[mac]
	return hook, found
}

// Len returns the number of watched MAC addresses.
func (s *TargetSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hooks)
}

// MACs returns the watched addresses in no particular order.
func (s *TargetSet) MACs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	macs := make([]string, 0, len(s.hooks))
	for mac := range s.hooks {
		macs = append(macs, mac)
	}
	return macs
}

// NormalizeMAC parses a textual MAC address and returns it in canonical
// lowercase colon-hex form (aa:bb:cc:dd:ee:ff). Only 48-bit addresses are
// accepted; magic packets cannot carry EUI-64 or InfiniBand addresses.
func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return "", fmt.Errorf("invalid MAC address %q: %w", mac, err)
	}
	if len(hw) != macLen {
		return "", fmt.Errorf("invalid MAC address %q: must be 48 bits", mac)
	}
	return hw.String(), nil
}
