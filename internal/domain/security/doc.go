// Package security contains the core domain types of the arming and alarm
// lifecycle engine.
//
// It defines nodes and zones (the registry vocabulary), arm states (the
// append-only arming history), alarms with their state machine, the policy
// tables that drive priority derivation and arming eligibility, and the
// sentinel errors shared by all services. Clone helpers avoid leaking internal
// references out of the services that own these values.
package security
