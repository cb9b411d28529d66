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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DatagramsTotal counts all UDP datagrams received on watched ports
	DatagramsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wol_datagrams_total",
			Help: "Number of UDP datagrams received on watched ports",
		},
	)

	// InvalidPacketsTotal counts datagrams that failed magic packet validation
	InvalidPacketsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wol_invalid_packets_total",
			Help: "Number of datagrams that were not valid Wake-on-LAN magic packets",
		},
	)

	// HooksSpawnedTotal counts hook commands spawned for matched packets
	HooksSpawnedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wol_hooks_spawned_total",
			Help: "Number of hook commands spawned for matched magic packets",
		},
	)

	// ErrorsTotal counts errors during WOL handling (receive and spawn failures)
	ErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "wol_errors_total",
			Help: "Number of errors during WOL handling",
		},
	)

	// WatchedTargets is a gauge for the number of MAC addresses being watched
	WatchedTargets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "wol_watched_targets",
			Help: "Number of MAC addresses currently being watched",
		},
	)
)

func init() {
	prometheus.MustRegister(
		DatagramsTotal,
		InvalidPacketsTotal,
		HooksSpawnedTotal,
		ErrorsTotal,
		WatchedTargets,
	)
}
