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
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"
)

// Listener owns one UDP socket and drives the receive loop: datagrams are
// parsed, matched against the target set and dispatched to the hook runner.
// All dependencies are injected; the listener holds no global state.
type Listener struct {
	port       int
	bindIP     net.IP
	targets    *TargetSet
	dispatcher Dispatcher
	log        logr.Logger
	conn       *net.UDPConn
}

// NewListener creates a WOL listener. A nil bindIP listens on all interfaces.
func NewListener(port int, bindIP net.IP, targets *TargetSet, dispatcher Dispatcher, log logr.Logger) *Listener {
	if bindIP == nil {
		bindIP = net.IPv4zero
	}
	return &Listener{
		port:       port,
		bindIP:     bindIP,
		targets:    targets,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Bind opens the UDP socket. This is the only fatal failure mode of the
// listener: without a socket there is nothing to do, so the error is
// propagated for the caller to terminate on.
func (l *Listener) Bind() error {
	addr := &net.UDPAddr{
		Port: l.port,
		IP:   l.bindIP,
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %d: %w", l.port, err)
	}
	l.conn = conn

	l.configureSocket()

	l.log.Info("WOL listener bound", "port", l.port, "bindAddress", l.bindIP.String(), "actualAddress", conn.LocalAddr().String())
	return nil
}

// LocalAddr returns the bound socket address, or nil before Bind.
func (l *Listener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// configureSocket applies socket options for broadcast WOL delivery.
// Failures here are logged and tolerated: the listener still works for
// unicast packets without them.
func (l *Listener) configureSocket() {
	file, err := l.conn.File()
	if err != nil {
		l.log.Error(err, "Failed to get socket file descriptor")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			l.log.Error(err, "Failed to close file descriptor")
		}
	}()

	fd := int(file.Fd())

	// Allow multiple binds (e.g. restart while sockets linger in TIME_WAIT)
	if err := syscall.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		l.log.Error(err, "Failed to enable SO_REUSEADDR")
	} else {
		l.log.V(1).Info("SO_REUSEADDR enabled")
	}

	// Allow multiple processes to bind the same port
	if err := syscall.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		l.log.Error(err, "Failed to enable SO_REUSEPORT")
	} else {
		l.log.V(1).Info("SO_REUSEPORT enabled")
	}

	// Essential for WOL: magic packets are usually broadcast
	if err := syscall.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_BROADCAST, 1); err != nil {
		l.log.Error(err, "Failed to enable SO_BROADCAST")
	} else {
		l.log.V(1).Info("SO_BROADCAST enabled")
	}

	// Larger read buffer for handling packet bursts
	if err := l.conn.SetReadBuffer(1024 * 64); err != nil {
		l.log.Error(err, "Failed to set read buffer size")
	}
}

// Run drives the receive loop until the context is cancelled. Datagrams are
// processed strictly sequentially in arrival order; only hook execution is
// detached. Every per-packet failure is terminal here: nothing recoverable
// propagates out of the loop.
func (l *Listener) Run(ctx context.Context) {
	defer l.Close()

	buffer := make([]byte, MaxDatagramSize)

	l.log.Info("UDP listener loop started, waiting for WOL packets...")

	for {
		select {
		case <-ctx.Done():
			l.log.Info("Context cancelled, stopping listener")
			return
		default:
			// Short read deadline so context cancellation is observed
			// between receives.
			if err := l.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
				l.log.Error(err, "Failed to set read deadline")
			}

			n, addr, err := l.conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue // deadline expired, retry
				}
				if ctx.Err() != nil {
					return
				}
				l.log.Error(err, "Error reading UDP packet")
				ErrorsTotal.Inc()
				continue
			}

			l.log.V(1).Info("UDP packet received", "from", addr.String(), "size", n)

			l.processPacket(ctx, buffer[:n], addr)
		}
	}
}

// processPacket parses one datagram and dispatches the hook on a match.
func (l *Listener) processPacket(ctx context.Context, packet []byte, addr *net.UDPAddr) {
	DatagramsTotal.Inc()

	magic, err := ParseMagicPacket(packet)
	if err != nil {
		// Common case on a monitored port: most broadcast traffic is not a
		// magic packet. Keep it out of the default log level.
		InvalidPacketsTotal.Inc()
		l.log.V(1).Info("Invalid WOL packet received", "from", addr.String(), "size", len(packet), "reason", err.Error())
		return
	}

	mac := magic.String()

	hook, found := l.targets.Lookup(mac)
	if !found {
		l.log.V(1).Info("WOL packet for unwatched MAC address", "mac", mac, "from", addr.String())
		return
	}

	l.log.Info("Valid WOL packet matched", "mac", mac, "from", addr.String())

	// Fire and forget: Dispatch returns without waiting on the hook, so a
	// slow or failing command never blocks packet reception. Retransmitted
	// packets each get their own invocation; debouncing is the hook's job.
	l.dispatcher.Dispatch(ctx, mac, hook)
}

// Close releases the socket. Safe to call more than once.
func (l *Listener) Close() {
	if l.conn != nil {
		if err := l.conn.Close(); err != nil {
			l.log.V(1).Info("Failed to close UDP socket", "error", err.Error())
		}
		l.log.Info("WOL listener stopped", "port", l.port)
	}
}
