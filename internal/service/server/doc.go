// Package server runs the agrisecure-server process.
//
// It loads settings, opens the configured store, seeds the registry, wires
// the arming, alarm, registry and statistics services, starts MQTT ingestion
// when enabled and serves the SecurityService over gRPC until shutdown.
package server
