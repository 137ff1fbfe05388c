package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dstolpe/dtaforge/internal/config"
	"github.com/dstolpe/dtaforge/internal/db"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// connectionStringFromEnv returns a connection string from the
// environment, preferring the tool-specific variable over the generic
// DATABASE_URL convention.
func connectionStringFromEnv() string {
	if connStr := os.Getenv("DTAFORGE_CONNECTION_STRING"); connStr != "" {
		return connStr
	}
	return os.Getenv("DATABASE_URL")
}

// resolveConnection resolves the full sink connection configuration
// from CLI flags, environment variables, and dtaforge.yaml, in that
// precedence order.
func resolveConnection(cmd *cobra.Command, flags *connectionFlags, projectCfg *config.ProjectConfig) (*dtaforge.ConnectionConfig, error) {
	connString := flags.ConnectionString
	granular := granularFlagsFrom(cmd, flags)
	if connString == "" && granular.IsEmpty() && granular.Database == "" {
		connString = connectionStringFromEnv()
	}

	azure := &db.AzureFlags{
		TenantID: flags.AzureTenantID,
		ClientID: flags.AzureClientID,
	}

	connCfg, err := db.ResolveConnectionParams(
		connString,
		granular,
		azure,
		db.LoadFromEnvironment(),
		yamlConnectionDefaults(projectCfg),
	)
	if err != nil {
		return nil, err
	}

	applyCloudAuth(connCfg, flags, projectCfg)
	return connCfg, nil
}
