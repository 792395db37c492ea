// Package postgres implements repository.Store on PostgreSQL through lib/pq.
//
// Arm states are insert-only rows keyed by version, alarms are upserted by id
// with their transition log kept in a separate append-only table.
package postgres
