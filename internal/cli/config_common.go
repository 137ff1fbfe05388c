package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dstolpe/dtaforge/internal/config"
	"github.com/dstolpe/dtaforge/internal/db"
	"github.com/dstolpe/dtaforge/internal/params"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// defaultTimeout bounds a whole conversion run when neither the
// --timeout flag nor dtaforge.yaml specifies one.
const defaultTimeout = 10 * time.Minute

// connectionFlags holds the sink connection flags shared by commands
// that talk to PostgreSQL.
type connectionFlags struct {
	ConnectionString string
	Host             string
	Port             int
	Username         string
	Database         string
	SSLMode          string
	AzureTenantID    string
	AzureClientID    string
	AWSRegion        string
	GoogleInstance   string
}

// registerConnectionFlags adds the shared connection flags to a command.
// Shorthands follow psql: -h host, -p port, -U user, -d dbname.
func registerConnectionFlags(cmd *cobra.Command, flags *connectionFlags) {
	cmd.Flags().StringVarP(&flags.ConnectionString, "connection", "c", "", "PostgreSQL connection string (URI or key/value)")
	cmd.Flags().StringVarP(&flags.Host, "host", "h", "", "Database server host")
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 0, "Database server port")
	cmd.Flags().StringVarP(&flags.Username, "username", "U", "", "Database user name")
	cmd.Flags().StringVarP(&flags.Database, "dbname", "d", "", "Database name")
	cmd.Flags().String("sslmode", "", "SSL mode (disable, allow, prefer, require, verify-ca, verify-full)")
	cmd.Flags().StringVar(&flags.AzureTenantID, "azure-tenant-id", "", "Azure Entra ID tenant for token authentication")
	cmd.Flags().StringVar(&flags.AzureClientID, "azure-client-id", "", "Azure Entra ID client for token authentication")
	cmd.Flags().StringVar(&flags.AWSRegion, "aws-region", "", "AWS region for RDS IAM token authentication")
	cmd.Flags().StringVar(&flags.GoogleInstance, "google-instance", "", "Cloud SQL instance (project:region:instance) for IAM authentication")

	_ = cmd.RegisterFlagCompletionFunc("sslmode", completeSSLModes)
}

// loadProjectConfig loads dtaforge.yaml from the project directory and
// any .env file next to it. A missing config file is not an error; the
// zero ProjectConfig is returned instead.
func loadProjectConfig(sourcePath string) (*config.ProjectConfig, error) {
	// .env is loaded first so PG* and AZURE_* variables defined there
	// participate in connection resolution.
	envPath := filepath.Join(sourcePath, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg, err := config.Load(sourcePath)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return &config.ProjectConfig{}, nil
		}
		return nil, err
	}
	return cfg, nil
}

// loadMergedAttributes merges dataset attributes with CLI-first
// precedence: --attr pairs beat --attrs-file entries, which beat the
// attributes block in dtaforge.yaml.
func loadMergedAttributes(attrPairs, attrFiles []string, projectCfg *config.ProjectConfig) (map[string]string, error) {
	merged := make(map[string]string)

	if projectCfg != nil {
		for k, v := range projectCfg.Attributes {
			merged[k] = v
		}
	}

	for _, path := range attrFiles {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read attributes file %s: %w", path, err)
		}
		fileAttrs, err := params.ParseEnvFile(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for k, v := range fileAttrs {
			merged[k] = v
		}
	}

	cliAttrs, err := params.ParseKeyValuePairs(attrPairs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dtaforge.ErrInvalidConfig, err)
	}
	for k, v := range cliAttrs {
		merged[k] = v
	}

	return merged, nil
}

// resolveEffectiveTimeout picks the conversion timeout: the --timeout
// flag when the user set it, then dtaforge.yaml, then the default.
func resolveEffectiveTimeout(cmd *cobra.Command, flagValue string, projectCfg *config.ProjectConfig) (time.Duration, error) {
	if cmd.Flags().Changed("timeout") {
		d, err := time.ParseDuration(flagValue)
		if err != nil {
			return 0, fmt.Errorf("invalid --timeout %q: %w", flagValue, dtaforge.ErrInvalidConfig)
		}
		return d, nil
	}
	if projectCfg != nil && projectCfg.Timeout != "" {
		d, err := time.ParseDuration(projectCfg.Timeout)
		if err != nil {
			return 0, fmt.Errorf("invalid timeout %q in %s: %w", projectCfg.Timeout, config.ConfigFileName, dtaforge.ErrInvalidConfig)
		}
		return d, nil
	}
	return defaultTimeout, nil
}

// logConnectionVerbose prints the resolved connection target without
// leaking credentials.
func logConnectionVerbose(logger dtaforge.Logger, cfg *dtaforge.ConnectionConfig) {
	logger.Verbose("Sink database: %s@%s:%d/%s (sslmode=%s, auth=%s)",
		cfg.Username, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode, cfg.AuthMethod)
}

// yamlConnectionDefaults maps the dtaforge.yaml connection block onto
// resolver inputs so file-level settings participate in precedence.
func yamlConnectionDefaults(projectCfg *config.ProjectConfig) *config.ProjectConfig {
	if projectCfg == nil {
		return &config.ProjectConfig{}
	}
	return projectCfg
}

// applyCloudAuth promotes AWS and Google IAM settings from flags or
// dtaforge.yaml onto the resolved connection config. Azure settings are
// handled inside the resolver because they also arrive via AZURE_* env
// variables.
func applyCloudAuth(connCfg *dtaforge.ConnectionConfig, flags *connectionFlags, projectCfg *config.ProjectConfig) {
	awsRegion := flags.AWSRegion
	googleInstance := flags.GoogleInstance
	if projectCfg != nil {
		if awsRegion == "" {
			awsRegion = projectCfg.Connection.AWSRegion
		}
		if googleInstance == "" {
			googleInstance = projectCfg.Connection.GoogleInstance
		}
	}

	if awsRegion != "" {
		connCfg.AuthMethod = dtaforge.AuthMethodAWSIAM
		connCfg.AWSRegion = awsRegion
	}
	if googleInstance != "" {
		connCfg.AuthMethod = dtaforge.AuthMethodGoogleIAM
		connCfg.GoogleInstance = googleInstance
	}
}

// granularFlagsFrom converts the CLI flag values into resolver input,
// reading sslmode through the flag set so Changed() semantics hold.
func granularFlagsFrom(cmd *cobra.Command, flags *connectionFlags) *db.GranularConnFlags {
	sslMode, _ := cmd.Flags().GetString("sslmode")
	return &db.GranularConnFlags{
		Host:     flags.Host,
		Port:     flags.Port,
		Username: flags.Username,
		Database: flags.Database,
		SSLMode:  sslMode,
	}
}
