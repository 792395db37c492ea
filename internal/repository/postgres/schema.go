package postgres

// schema is applied by Migrate. Every statement is idempotent.
//
//nolint:gochecknoglobals // Read-only DDL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS arm_states (
		version       BIGINT PRIMARY KEY,
		mode          TEXT NOT NULL,
		previous_mode TEXT NOT NULL DEFAULT '',
		armed_nodes   TEXT[] NOT NULL DEFAULT '{}',
		changed_at    TIMESTAMPTZ NOT NULL,
		changed_by    JSONB,
		source        TEXT NOT NULL DEFAULT '',
		notes         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS alarms (
		id              TEXT PRIMARY KEY,
		node_id         TEXT NOT NULL,
		classification  TEXT NOT NULL,
		priority        TEXT NOT NULL,
		status          TEXT NOT NULL,
		triggered_at    TIMESTAMPTZ NOT NULL,
		acknowledged_at TIMESTAMPTZ,
		acknowledged_by JSONB,
		resolved_at     TIMESTAMPTZ,
		resolved_by     JSONB,
		notes           TEXT NOT NULL DEFAULT '',
		version         BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS alarms_status_idx ON alarms (status)`,
	`CREATE INDEX IF NOT EXISTS alarms_triggered_at_idx ON alarms (triggered_at DESC)`,
	`CREATE TABLE IF NOT EXISTS alarm_transitions (
		alarm_id    TEXT NOT NULL REFERENCES alarms (id),
		seq         INTEGER NOT NULL,
		from_status TEXT NOT NULL,
		to_status   TEXT NOT NULL,
		at          TIMESTAMPTZ NOT NULL,
		actor       JSONB,
		notes       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (alarm_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS nodes (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		node_type     TEXT NOT NULL,
		status        TEXT NOT NULL,
		telemetry     JSONB NOT NULL DEFAULT '{}',
		last_seen     TIMESTAMPTZ,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		registered_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS zones (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		members     TEXT[] NOT NULL DEFAULT '{}'
	)`,
}
