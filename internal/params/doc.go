// Package params parses dataset attributes for conversion runs.
//
// Attributes arrive from two places: --attr flags on the CLI and an
// optional .env file next to the dataset. CLI attributes take
// precedence over file-sourced ones. The merged map rides along on
// DatasetInfo and is stored with the run by the configured sink.
//
// # Example Usage
//
//	attrs, err := params.ParseKeyValuePairs(attrFlags)
//	if err != nil {
//	    return err
//	}
//
//	fileAttrs, err := params.ParseEnvFile(content)
//	if err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// All functions are safe for concurrent use.
package params
