package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/dstolpe/dtaforge/internal/convert"
	"github.com/dstolpe/dtaforge/internal/files/filesystem"
	"github.com/dstolpe/dtaforge/internal/logging"
	"github.com/dstolpe/dtaforge/internal/sinks/jsonl"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <project_path>",
	Short: "Print resolved columns, missing ranges, and labels without converting rows",
	Long: `Inspect compiles the project's metadata against the CSV header and
prints the resolved column descriptors, their compiled missing-value
ranges, and their value labels as newline-delimited JSON. No data rows
are encoded, so a broken cell never stops an inspection.

Examples:
  dtaforge inspect ./survey
  dtaforge inspect ./survey --output columns.jsonl
  dtaforge inspect ./survey --metadata codebook.json`,
	Args: RequireProjectPath,
	RunE: runInspect,
}

var (
	inspectMetadataFile string
	inspectDataFile     string
	inspectOutput       string
)

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectMetadataFile, "metadata", "", "Metadata document, relative to the project directory (default \"metadata.json\")")
	inspectCmd.Flags().StringVar(&inspectDataFile, "data", "", "CSV data file, relative to the project directory (default \"data.csv\")")
	inspectCmd.Flags().StringVarP(&inspectOutput, "output", "o", "", "Output file (default stdout)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	cfg := dtaforge.ConversionConfig{
		SourcePath:   args[0],
		MetadataFile: inspectMetadataFile,
		DataFile:     inspectDataFile,
		Sink:         dtaforge.SinkJSONL,
		OutputPath:   inspectOutput,
		MetadataOnly: true,
		Verbose:      verbose,
	}

	factory := func(_ context.Context, cfg *dtaforge.ConversionConfig, _ dtaforge.Logger) (dtaforge.Sink, error) {
		if cfg.OutputPath == "" {
			return jsonl.New(os.Stdout), nil
		}
		sink, err := jsonl.Create(cfg.OutputPath)
		if err != nil {
			return nil, err
		}
		return sink, nil
	}

	service := convert.NewConversionService(filesystem.NewOSFileSystem(), factory, logger)
	return service.Convert(cmd.Context(), cfg)
}
