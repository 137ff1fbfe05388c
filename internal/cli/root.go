package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const asciiLogo = `     _ _         __
  __| | |_ __ _ / _| ___  _ __ __ _  ___
 / _` + "`" + ` | __/ _` + "`" + ` | |_ / _ \| '__/ _` + "`" + ` |/ _ \
| (_| | || (_| |  _| (_) | | | (_| |  __/
 \__,_|\__\__,_|_|  \___/|_|  \__, |\___|
                              |___/`

var rootCmd = &cobra.Command{
	Use:   "dtaforge",
	Short: "Metadata-driven CSV to statistical-table compiler",
	Long: asciiLogo + `

dtaforge reads a JSON metadata document and a CSV data file, resolves
every column to its native storage type, display format, missing-value
ranges, and value labels, then streams typed cells into a sink:
newline-delimited JSON for inspection, or long-format PostgreSQL tables
for analysis.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration or parameters
  11 - Sink database connection failed
  12 - User denied overwrite approval
  13 - Metadata or cell data failed to compile
  14 - Metadata document not found
  15 - Output sink rejected emitted data`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo()
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	// Registering --help without a shorthand frees -h for --host on
	// subcommands, matching psql conventions.
	rootCmd.PersistentFlags().Bool("help", false, "Help for dtaforge")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
