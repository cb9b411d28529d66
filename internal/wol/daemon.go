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
	"net"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
)

// Options configures a Daemon.
type Options struct {
	// BindIP is the local address to listen on; nil means all interfaces.
	BindIP net.IP
	// Ports is the set of UDP ports to watch. WOL senders conventionally use
	// ports 0, 7 and 9; one listener is run per port.
	Ports []int
	// StatusAddress is the health/metrics HTTP listen address; empty disables it.
	StatusAddress string
}

// Daemon runs one WOL listener per configured port plus the status server.
// The target set and dispatcher are shared across listeners and immutable
// after start.
type Daemon struct {
	opts       Options
	targets    *TargetSet
	dispatcher Dispatcher
	log        logr.Logger

	mu        sync.Mutex
	listeners []*Listener
	ready     atomic.Bool
}

// NewDaemon creates a daemon from its injected dependencies.
func NewDaemon(opts Options, targets *TargetSet, dispatcher Dispatcher, log logr.Logger) *Daemon {
	if len(opts.Ports) == 0 {
		opts.Ports = []int{DefaultPort}
	}
	return &Daemon{
		opts:       opts,
		targets:    targets,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Run binds every listener, then blocks until the context is cancelled. A
// bind failure is fatal and returned immediately; everything after binding is
// recoverable per packet and never surfaces here. Hooks already spawned are
// not killed on shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	listeners := make([]*Listener, 0, len(d.opts.Ports))

	for _, port := range d.opts.Ports {
		l := NewListener(port, d.opts.BindIP, d.targets, d.dispatcher, d.log.WithValues("port", port))
		if err := l.Bind(); err != nil {
			for _, bound := range listeners {
				bound.Close()
			}
			return err
		}
		listeners = append(listeners, l)
	}

	d.mu.Lock()
	d.listeners = listeners
	d.mu.Unlock()

	WatchedTargets.Set(float64(d.targets.Len()))
	d.ready.Store(true)

	d.log.Info("WOL hook daemon started",
		"ports", d.opts.Ports,
		"targets", d.targets.Len(),
		"statusAddress", d.opts.StatusAddress)

	if d.opts.StatusAddress != "" {
		go d.serveStatus(ctx)
	}

	var wg sync.WaitGroup
	for _, l := range listeners {
		wg.Add(1)
		go func(l *Listener) {
			defer wg.Done()
			l.Run(ctx)
		}(l)
	}

	<-ctx.Done()
	wg.Wait()

	d.log.Info("WOL hook daemon stopped")
	return nil
}

// Addrs returns the bound socket addresses, empty before binding completes.
func (d *Daemon) Addrs() []net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()

	addrs := make([]net.Addr, 0, len(d.listeners))
	for _, l := range d.listeners {
		if a := l.LocalAddr(); a != nil {
			addrs = append(addrs, a)
		}
	}
	return addrs
}
