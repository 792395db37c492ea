package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations for settings.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing socket.
	settings := new(Config)

	err := Validate(settings)
	require.Error(t, err)

	// Bad socket.
	settings = &Config{
		ServerAddress: "bad:address",
	}

	err = Validate(settings)
	require.Error(t, err)

	// Postgres without DSN.
	settings = &Config{
		ServerAddress: "127.0.0.1:0",
		Storage:       StorageConfig{Driver: DriverPostgres},
	}

	err = Validate(settings)
	require.ErrorIs(t, err, errPostgresDSNRequired)

	// Unknown driver.
	settings = &Config{
		ServerAddress: "127.0.0.1:0",
		Storage:       StorageConfig{Driver: "mongo"},
	}

	err = Validate(settings)
	require.ErrorIs(t, err, errUnknownDriver)

	// MQTT enabled without broker.
	settings = &Config{
		ServerAddress: "127.0.0.1:0",
		MQTT:          MQTTConfig{Enabled: true},
	}

	err = Validate(settings)
	require.ErrorIs(t, err, errBrokerRequired)

	// Bad zone policy.
	settings = &Config{
		ServerAddress: "127.0.0.1:0",
		Arming:        ArmingConfig{ZoneArmedPolicy: "most"},
	}

	err = Validate(settings)
	require.ErrorIs(t, err, errInvalidZonePolicy)

	// Offline before warning.
	settings = &Config{
		ServerAddress: "127.0.0.1:0",
		Nodes:         NodesConfig{WarningAfter: time.Hour, OfflineAfter: time.Minute},
	}

	err = Validate(settings)
	require.ErrorIs(t, err, errInvalidThresholds)
}

// TestValidate_Defaults verifies that omitted settings get their defaults.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	settings := &Config{ServerAddress: "127.0.0.1:50051"}
	require.NoError(t, Validate(settings))

	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DriverFile, settings.Storage.Driver)
	require.Equal(t, DefaultStateFilename, settings.Storage.Path)
	require.Equal(t, DefaultStatsWindowDays, settings.Stats.WindowDays)
	require.Equal(t, "all", settings.Arming.ZoneArmedPolicy)
	require.Equal(t, "agrisecure/%s/command", settings.MQTT.CommandTopic)
	require.NotNil(t, settings.MQTT.AutoRegister)
	require.True(t, *settings.MQTT.AutoRegister)
	require.Equal(t, 10, settings.Nodes.CriticalBattery)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		ServerAddress: "127.0.0.1:50051",
		Arming: ArmingConfig{
			ZoneDefaultMode: "away",
		},
		Alarms: AlarmsConfig{
			PriorityPolicy: map[string]string{"person": "critical"},
		},
		Seed: SeedConfig{
			Nodes: []SeedNode{{ID: "SEC-001", Type: "security"}},
			Zones: []SeedZone{{ID: "north", Name: "North", Members: []string{"SEC-001"}}},
		},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.ServerAddress, loaded.ServerAddress)
	require.Equal(t, "away", loaded.Arming.ZoneDefaultMode)
	require.Equal(t, "critical", loaded.Alarms.PriorityPolicy["person"])
	require.Equal(t, settings.Seed, loaded.Seed)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestApplyEnv verifies that secrets from the environment win over the file.
func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvPostgresDSN, "postgres://env")
	t.Setenv(EnvMQTTPassword, "s3cret")

	cfg := &Config{Storage: StorageConfig{PostgresDSN: "postgres://file"}}
	ApplyEnv(cfg)

	require.Equal(t, "postgres://env", cfg.Storage.PostgresDSN)
	require.Equal(t, "s3cret", cfg.MQTT.Password)
	require.Empty(t, cfg.MQTT.Username)
}
