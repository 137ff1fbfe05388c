package dtaforge

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess          = 0  // Conversion completed successfully
	ExitGeneralError     = 1  // Unknown or unclassified error
	ExitUsageError       = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic            = 3  // Internal panic (unexpected crash)
	ExitConfigError      = 10 // Invalid configuration or parameters
	ExitConnectionError  = 11 // Failed to connect to the sink database
	ExitApprovalDenied   = 12 // User denied overwrite approval
	ExitConversionFailed = 13 // Metadata or cell data failed to compile
	ExitMetadataMissing  = 14 // Metadata document not found
	ExitSinkFailed       = 15 // Output sink rejected emitted data
)

const (
	// DefaultMetadataFile is the metadata document filename used when
	// ConversionConfig.MetadataFile is empty.
	DefaultMetadataFile = "metadata.json"

	// DefaultDataFile is the CSV filename used when
	// ConversionConfig.DataFile is empty.
	DefaultDataFile = "data.csv"

	// SinkJSONL and SinkPostgres are the recognized sink selectors.
	SinkJSONL    = "jsonl"
	SinkPostgres = "postgres"

	// DefaultTablePrefix is the table name prefix used by the postgres
	// sink when none is configured.
	DefaultTablePrefix = "dtaforge"

	// DefaultForceApprovalCountdown is the countdown duration before force approval proceeds.
	DefaultForceApprovalCountdown = 5 * time.Second

	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of retry attempts.
	DefaultRetryMaxAttempts = 3

	// MaxErrorPreviewLength is the maximum number of characters of cell
	// text shown in diagnostics. This prevents overwhelming the console
	// with pathological input lines.
	MaxErrorPreviewLength = 200
)
