// Package ingest turns gateway MQTT traffic into registry updates and alarms,
// and publishes arm/disarm commands back to the gateways.
package ingest
