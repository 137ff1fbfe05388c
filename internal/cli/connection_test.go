package cli

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/dstolpe/dtaforge/internal/config"
)

func connectionCommand(t *testing.T, flags *connectionFlags) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	registerConnectionFlags(cmd, flags)
	return cmd
}

func clearConnectionEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"DTAFORGE_CONNECTION_STRING", "DATABASE_URL",
		"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE",
		"AZURE_TENANT_ID", "AZURE_CLIENT_ID", "AZURE_CLIENT_SECRET",
	} {
		t.Setenv(v, "")
	}
}

func TestConnectionStringFromEnv_PrefersToolVariable(t *testing.T) {
	t.Setenv("DTAFORGE_CONNECTION_STRING", "postgresql://tool@host:5432/db1")
	t.Setenv("DATABASE_URL", "postgresql://generic@host:5432/db2")

	if got := connectionStringFromEnv(); got != "postgresql://tool@host:5432/db1" {
		t.Errorf("Expected tool-specific variable to win, got %q", got)
	}
}

func TestConnectionStringFromEnv_FallsBackToDatabaseURL(t *testing.T) {
	t.Setenv("DTAFORGE_CONNECTION_STRING", "")
	t.Setenv("DATABASE_URL", "postgresql://generic@host:5432/db2")

	if got := connectionStringFromEnv(); got != "postgresql://generic@host:5432/db2" {
		t.Errorf("Expected DATABASE_URL fallback, got %q", got)
	}
}

func TestResolveConnection_FromFlag(t *testing.T) {
	clearConnectionEnv(t)

	// registerConnectionFlags rebinds every field to its flag default, so
	// values must go in through the flag set, as cobra would set them.
	flags := &connectionFlags{}
	cmd := connectionCommand(t, flags)
	if err := cmd.Flags().Set("connection", "postgresql://app@dbhost:5433/surveydb"); err != nil {
		t.Fatalf("Failed to set flag: %v", err)
	}

	connCfg, err := resolveConnection(cmd, flags, &config.ProjectConfig{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if connCfg.Host != "dbhost" || connCfg.Port != 5433 || connCfg.Database != "surveydb" {
		t.Errorf("Unexpected connection config: %+v", connCfg)
	}
}

func TestResolveConnection_ConflictingFlags(t *testing.T) {
	clearConnectionEnv(t)

	flags := &connectionFlags{}
	cmd := connectionCommand(t, flags)
	for name, value := range map[string]string{
		"connection": "postgresql://app@dbhost:5433/surveydb",
		"host":       "other",
	} {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatalf("Failed to set flag %s: %v", name, err)
		}
	}

	_, err := resolveConnection(cmd, flags, &config.ProjectConfig{})
	if err == nil {
		t.Error("Expected conflict error for --connection plus granular flags")
	}
}

func TestResolveConnection_EnvConnectionString(t *testing.T) {
	clearConnectionEnv(t)
	t.Setenv("DTAFORGE_CONNECTION_STRING", "postgresql://envuser@envhost:5432/envdb")

	flags := &connectionFlags{}
	cmd := connectionCommand(t, flags)

	connCfg, err := resolveConnection(cmd, flags, &config.ProjectConfig{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if connCfg.Host != "envhost" || connCfg.Username != "envuser" {
		t.Errorf("Expected env connection string to apply, got %+v", connCfg)
	}
}

func TestResolveConnection_YAMLDefaults(t *testing.T) {
	clearConnectionEnv(t)

	flags := &connectionFlags{}
	cmd := connectionCommand(t, flags)

	projectCfg := &config.ProjectConfig{
		Connection: config.ConnectionConfig{
			Host:     "yamlhost",
			Port:     5440,
			Username: "yamluser",
			Database: "yamldb",
		},
	}

	connCfg, err := resolveConnection(cmd, flags, projectCfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if connCfg.Host != "yamlhost" || connCfg.Port != 5440 {
		t.Errorf("Expected dtaforge.yaml connection defaults, got %+v", connCfg)
	}
}
