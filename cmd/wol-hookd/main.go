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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/brennie/wake-on-lan-hook/internal/config"
	"github.com/brennie/wake-on-lan-hook/internal/wol"
)

func main() {
	var configPath string
	var debug bool

	flag.StringVar(&configPath, "config", "/etc/wol-hookd/config.yaml",
		"Path to the YAML configuration file")
	flag.BoolVar(&debug, "debug", false,
		"Enable debug logging (per-packet detail)")
	flag.Parse()

	zapCfg := zap.NewProductionConfig()
	if debug {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapLog, err := zapCfg.Build()
	if err != nil {
		// Logger isn't up yet, so this goes straight to stderr.
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = zapLog.Sync() }()

	logger := zapr.NewLogger(zapLog)
	setupLog := logger.WithName("setup")

	cfg, err := config.Load(configPath)
	if err != nil {
		setupLog.Error(err, "Failed to load configuration", "path", configPath)
		os.Exit(1)
	}

	// WOL senders conventionally use ports 0, 7 and 9; all are privileged.
	for _, port := range cfg.Ports {
		if port < 1024 && os.Geteuid() != 0 {
			setupLog.Info("Binding a privileged port without root will likely fail", "port", port)
		}
	}

	targets := wol.NewTargetSet(logger.WithName("targets"))
	if err := cfg.TargetSet(targets); err != nil {
		setupLog.Error(err, "Failed to build target set")
		os.Exit(1)
	}

	setupLog.Info("Starting wol-hookd",
		"bindAddress", cfg.BindAddress,
		"ports", cfg.Ports,
		"targets", targets.Len(),
		"version", "v0.1.0")

	// Signal handling for graceful shutdown; hooks already spawned keep running.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dispatcher := wol.NewExecDispatcher(logger.WithName("hook"))

	daemon := wol.NewDaemon(wol.Options{
		BindIP:        cfg.BindIP(),
		Ports:         cfg.Ports,
		StatusAddress: cfg.StatusAddress,
	}, targets, dispatcher, logger.WithName("wol"))

	if err := daemon.Run(ctx); err != nil {
		setupLog.Error(err, "Daemon failed to start")
		os.Exit(1)
	}

	setupLog.Info("Daemon stopped gracefully")
}
