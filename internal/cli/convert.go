package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dstolpe/dtaforge/internal/convert"
	"github.com/dstolpe/dtaforge/internal/db"
	"github.com/dstolpe/dtaforge/internal/files/filesystem"
	"github.com/dstolpe/dtaforge/internal/logging"
	"github.com/dstolpe/dtaforge/internal/sinks/jsonl"
	"github.com/dstolpe/dtaforge/internal/sinks/postgres"
	"github.com/dstolpe/dtaforge/internal/ui"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

var convertCmd = &cobra.Command{
	Use:   "convert <project_path>",
	Short: "Convert a metadata/CSV project into a sink",
	Long: `Convert compiles the project's metadata document against its CSV data
file and streams the typed result into the selected sink.

The project directory holds metadata.json and data.csv (names
overridable with --metadata and --data) and, optionally, dtaforge.yaml
with connection and attribute defaults plus a .env file.

Sinks:
  jsonl     - newline-delimited JSON to stdout or --output (default)
  postgres  - long-format tables in a PostgreSQL schema

The postgres sink writes into the schema named by --schema (default
"dtaforge"). An existing schema is never touched unless --overwrite is
given; --overwrite asks for interactive confirmation, and --force
replaces the prompt with a countdown.

Examples:
  dtaforge convert ./survey
  dtaforge convert ./survey --output survey.jsonl
  dtaforge convert ./survey --sink postgres -d surveydb --schema wave3
  dtaforge convert ./survey --sink postgres -c "postgresql://app@db:5432/surveydb" --overwrite
  dtaforge convert ./survey --attr study=nhanes --attr wave=2024`,
	Args: RequireProjectPath,
	RunE: runConvert,
}

var (
	convertMetadataFile string
	convertDataFile     string
	convertSink         string
	convertOutput       string
	convertSchema       string
	convertOverwrite    bool
	convertForce        bool
	convertAttrs        []string
	convertAttrFiles    []string
	convertTimeout      string
	convertConnFlags    connectionFlags
)

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVar(&convertMetadataFile, "metadata", "", "Metadata document, relative to the project directory (default \"metadata.json\")")
	convertCmd.Flags().StringVar(&convertDataFile, "data", "", "CSV data file, relative to the project directory (default \"data.csv\")")
	convertCmd.Flags().StringVarP(&convertSink, "sink", "s", "", "Output sink: jsonl or postgres (default \"jsonl\")")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file for the jsonl sink (default stdout)")
	convertCmd.Flags().StringVar(&convertSchema, "schema", "", "Target schema for the postgres sink (default \"dtaforge\")")
	convertCmd.Flags().BoolVar(&convertOverwrite, "overwrite", false, "Drop and recreate an existing sink schema (requires approval)")
	convertCmd.Flags().BoolVar(&convertForce, "force", false, "Skip interactive approval, approve after a countdown")
	convertCmd.Flags().StringArrayVarP(&convertAttrs, "attr", "a", nil, "Dataset attribute as key=value (repeatable)")
	convertCmd.Flags().StringArrayVar(&convertAttrFiles, "attrs-file", nil, "File with key=value attributes, one per line (repeatable)")
	convertCmd.Flags().StringVar(&convertTimeout, "timeout", "10m", "Timeout for the whole conversion (e.g. 30s, 5m, 1h)")
	registerConnectionFlags(convertCmd, &convertConnFlags)

	_ = convertCmd.RegisterFlagCompletionFunc("sink", completeSinkNames)
}

func runConvert(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	cfg, err := buildConversionConfig(cmd, args[0], verbose)
	if err != nil {
		return err
	}

	service := convert.NewConversionService(
		filesystem.NewOSFileSystem(),
		newSinkFactory(),
		logger,
	)
	return service.Convert(cmd.Context(), *cfg)
}

// buildConversionConfig assembles the conversion configuration from
// flags, dtaforge.yaml, and the environment.
func buildConversionConfig(cmd *cobra.Command, sourcePath string, verbose bool) (*dtaforge.ConversionConfig, error) {
	projectCfg, err := loadProjectConfig(sourcePath)
	if err != nil {
		return nil, err
	}

	attrs, err := loadMergedAttributes(convertAttrs, convertAttrFiles, projectCfg)
	if err != nil {
		return nil, err
	}

	timeout, err := resolveEffectiveTimeout(cmd, convertTimeout, projectCfg)
	if err != nil {
		return nil, err
	}

	sink := convertSink
	if sink == "" {
		sink = projectCfg.Sink.Type
	}
	output := convertOutput
	if output == "" {
		output = projectCfg.Sink.Output
	}
	schema := convertSchema
	if schema == "" {
		schema = projectCfg.Sink.Schema
	}

	cfg := &dtaforge.ConversionConfig{
		SourcePath:   sourcePath,
		MetadataFile: convertMetadataFile,
		DataFile:     convertDataFile,
		Sink:         sink,
		OutputPath:   output,
		TablePrefix:  schema,
		Overwrite:    convertOverwrite,
		Force:        convertForce,
		Attributes:   attrs,
		Timeout:      timeout,
		Verbose:      verbose,
	}

	if sink == dtaforge.SinkPostgres {
		connCfg, err := resolveConnection(cmd, &convertConnFlags, projectCfg)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", dtaforge.ErrInvalidConfig, err)
		}
		cfg.ConnectionString = db.BuildConnectionString(connCfg)
		cfg.AuthMethod = connCfg.AuthMethod
		cfg.AzureTenantID = connCfg.AzureTenantID
		cfg.AzureClientID = connCfg.AzureClientID
		cfg.AzureClientSecret = connCfg.AzureClientSecret
		cfg.AWSRegion = connCfg.AWSRegion
		cfg.GoogleInstance = connCfg.GoogleInstance
	}

	return cfg, nil
}

// newSinkFactory builds the sink selected by the configuration. All
// connection decisions were resolved into the configuration up front,
// so the factory only has to materialize them.
func newSinkFactory() convert.SinkFactory {
	return func(ctx context.Context, cfg *dtaforge.ConversionConfig, logger dtaforge.Logger) (dtaforge.Sink, error) {
		switch cfg.Sink {
		case "", dtaforge.SinkJSONL:
			if cfg.OutputPath == "" {
				return jsonl.New(os.Stdout), nil
			}
			sink, err := jsonl.Create(cfg.OutputPath)
			if err != nil {
				return nil, err
			}
			return sink, nil

		case dtaforge.SinkPostgres:
			connCfg, err := db.ParseConnectionString(cfg.ConnectionString)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", dtaforge.ErrInvalidConfig, err)
			}
			connCfg.AuthMethod = cfg.AuthMethod
			connCfg.AzureTenantID = cfg.AzureTenantID
			connCfg.AzureClientID = cfg.AzureClientID
			connCfg.AzureClientSecret = cfg.AzureClientSecret
			connCfg.AWSRegion = cfg.AWSRegion
			connCfg.GoogleInstance = cfg.GoogleInstance
			logConnectionVerbose(logger, connCfg)

			connector, err := db.NewConnector(connCfg)
			if err != nil {
				return nil, err
			}

			var approver dtaforge.Approver
			if cfg.Force {
				approver = ui.NewForcedApprover(cfg.Verbose)
			} else {
				approver = ui.NewInteractiveApprover(cfg.Verbose)
			}

			return postgres.New(connector, approver, logger, postgres.Config{
				Schema:    cfg.TablePrefix,
				Overwrite: cfg.Overwrite,
			}), nil

		default:
			return nil, fmt.Errorf("unknown sink %q: %w", cfg.Sink, dtaforge.ErrInvalidConfig)
		}
	}
}
