package dtaforge

import "errors"

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// The first four cover the compiler's failure taxonomy: malformed
// metadata, type-inconsistent missing ranges, unparsable literals, and
// missing-tag exhaustion. Embedders should branch on these rather than
// terminating the process.
//
// Example usage:
//
//	err := converter.Convert(ctx, config)
//	if errors.Is(err, dtaforge.ErrMalformedMetadata) {
//	    // Handle a structurally broken metadata document
//	}
var (
	// ErrMalformedMetadata indicates a required metadata property is
	// missing or structurally wrong.
	ErrMalformedMetadata = errors.New("malformed metadata")

	// ErrTypeMismatch indicates a missing-range bound typed
	// inconsistently with its column.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrBadLiteral indicates a cell or bound that fails numeric, date,
	// or date-time parsing.
	ErrBadLiteral = errors.New("unparsable literal")

	// ErrTagSpaceExhausted indicates more than 26 missing ranges were
	// requested for one column.
	ErrTagSpaceExhausted = errors.New("missing tag space exhausted")

	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMetadataNotFound indicates the metadata document was not found.
	ErrMetadataNotFound = errors.New("metadata document not found")

	// ErrApprovalDenied indicates the user denied approval for the operation.
	ErrApprovalDenied = errors.New("approval denied")

	// ErrSinkFailed indicates the output sink rejected emitted data.
	ErrSinkFailed = errors.New("sink write failed")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrConnectionFailed indicates the sink database connection failed.
	ErrConnectionFailed = errors.New("connection failed")
)

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Check for sentinel errors
	switch {
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrMetadataNotFound):
		return ExitMetadataMissing
	case errors.Is(err, ErrApprovalDenied):
		return ExitApprovalDenied
	case errors.Is(err, ErrMalformedMetadata),
		errors.Is(err, ErrTypeMismatch),
		errors.Is(err, ErrBadLiteral),
		errors.Is(err, ErrTagSpaceExhausted):
		return ExitConversionFailed
	case errors.Is(err, ErrSinkFailed):
		return ExitSinkFailed
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	}

	return ExitGeneralError
}
