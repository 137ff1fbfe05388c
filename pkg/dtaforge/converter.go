package dtaforge

import "context"

// Converter is the main interface for executing conversions.
// Implementations handle the full workflow: loading inputs, compiling
// column metadata, encoding cells, and feeding the configured sink.
type Converter interface {
	// Convert executes a conversion using the provided configuration.
	// It returns an error if the conversion fails at any stage; the
	// error wraps one of the package sentinel errors where the failure
	// is classifiable.
	Convert(ctx context.Context, config ConversionConfig) error
}
