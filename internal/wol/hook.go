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
	"context"
	"os"
	"os/exec"
	"syscall"

	"github.com/go-logr/logr"
)

// Dispatcher runs the hook for a matched MAC address. Implementations must
// not block: the listener calls Dispatch from its receive loop.
type Dispatcher interface {
	Dispatch(ctx context.Context, mac string, hook HookSpec)
}

// ExecDispatcher spawns hook commands as detached subprocesses. The listener
// holds no handle to the child after Dispatch returns; stdout, stderr and the
// exit status are not consumed.
type ExecDispatcher struct {
	log logr.Logger
}

// NewExecDispatcher creates a dispatcher that spawns real processes.
func NewExecDispatcher(log logr.Logger) *ExecDispatcher {
	return &ExecDispatcher{log: log}
}

// Dispatch starts the hook command and returns immediately. The matched MAC
// is appended as the final argument and exported as WOL_MAC. A spawn failure
// is logged and counted but never propagated: the next match still gets its
// own independent invocation attempt.
func (d *ExecDispatcher) Dispatch(_ context.Context, mac string, hook HookSpec) {
	args := make([]string, 0, len(hook.Args)+1)
	args = append(args, hook.Args...)
	args = append(args, mac)

	// Deliberately not exec.CommandContext: daemon shutdown must not kill
	// hooks that are already running.
	cmd := exec.Command(hook.Command, args...)
	cmd.Env = append(os.Environ(), "WOL_MAC="+mac)
	cmd.Env = append(cmd.Env, hook.Env...)

	// Own session so terminal signals aimed at the daemon don't reach the hook.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		d.log.Error(err, "Failed to spawn hook command", "command", hook.Command, "mac", mac)
		ErrorsTotal.Inc()
		return
	}

	HooksSpawnedTotal.Inc()
	d.log.Info("Hook command spawned", "command", hook.Command, "mac", mac, "pid", cmd.Process.Pid)

	// Reap the child so it doesn't linger as a zombie. The exit status is
	// only surfaced at debug level.
	go func() {
		if err := cmd.Wait(); err != nil {
			d.log.V(1).Info("Hook command exited with error", "command", hook.Command, "mac", mac, "error", err.Error())
			return
		}
		d.log.V(1).Info("Hook command completed", "command", hook.Command, "mac", mac)
	}()
}
