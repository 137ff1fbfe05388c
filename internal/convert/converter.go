// Package convert orchestrates conversion runs: it loads the metadata
// document and CSV data, drives the per-column compile phases, and
// feeds the configured sink.
package convert

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dstolpe/dtaforge/internal/checksum"
	"github.com/dstolpe/dtaforge/internal/compile"
	"github.com/dstolpe/dtaforge/internal/files/filesystem"
	"github.com/dstolpe/dtaforge/internal/metadata"
	"github.com/dstolpe/dtaforge/internal/sourcemap"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// SinkFactory builds the sink selected by the configuration. The
// factory runs after configuration validation, so it may assume the
// sink selector is one of the recognized values.
type SinkFactory func(ctx context.Context, config *dtaforge.ConversionConfig, logger dtaforge.Logger) (dtaforge.Sink, error)

// ConversionService implements the Converter interface.
// Thread-Safety: NOT safe for concurrent Convert() calls on the same
// instance. Create separate instances for concurrent conversions.
type ConversionService struct {
	fs          filesystem.FileSystem
	sinkFactory SinkFactory
	logger      dtaforge.Logger
	calculator  checksum.Calculator
	newRunID    func() string
}

// NewConversionService creates a ConversionService with all dependencies
// injected. Nil dependencies are programmer errors and panic at
// construction time; runtime conditions (unreadable files, malformed
// metadata, sink failures) are returned as errors from Convert.
func NewConversionService(
	fs filesystem.FileSystem,
	sinkFactory SinkFactory,
	logger dtaforge.Logger,
) *ConversionService {
	if fs == nil {
		panic("fs cannot be nil")
	}
	if sinkFactory == nil {
		panic("sinkFactory cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &ConversionService{
		fs:          fs,
		sinkFactory: sinkFactory,
		logger:      logger,
		calculator:  checksum.New(),
		newRunID:    uuid.NewString,
	}
}

// Convert executes a conversion using the provided configuration.
// The workflow is: validate, load inputs, resolve every column and its
// missingness and labels, then encode all rows. Any invariant violation
// aborts the whole run; there is no partial-result mode.
func (s *ConversionService) Convert(ctx context.Context, config dtaforge.ConversionConfig) (err error) {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	metadataPath := filepath.Join(config.SourcePath, orDefault(config.MetadataFile, dtaforge.DefaultMetadataFile))
	dataPath := filepath.Join(config.SourcePath, orDefault(config.DataFile, dtaforge.DefaultDataFile))

	s.logger.Verbose("Metadata document: %s", metadataPath)
	s.logger.Verbose("Data file: %s", dataPath)

	metadataBytes, err := s.fs.ReadFile(metadataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("metadata document %s: %w", metadataPath, dtaforge.ErrMetadataNotFound)
		}
		return fmt.Errorf("failed to read metadata document: %w", err)
	}

	doc, err := metadata.Parse(metadataBytes)
	if err != nil {
		var syntaxErr *metadata.SyntaxError
		if errors.As(err, &syntaxErr) {
			sm := sourcemap.New(metadataBytes)
			return fmt.Errorf("%s: %s: %w", metadataPath, sm.Describe(syntaxErr.Offset), err)
		}
		return fmt.Errorf("%s: %w", metadataPath, err)
	}

	dataBytes, err := s.fs.ReadFile(dataPath)
	if err != nil {
		return fmt.Errorf("failed to read data file %s: %w", dataPath, err)
	}

	reader := csv.NewReader(bytes.NewReader(dataBytes))
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read column header from %s: %w", dataPath, err)
	}

	info := dtaforge.DatasetInfo{
		RunID:                      s.newRunID(),
		MetadataPath:               metadataPath,
		DataPath:                   dataPath,
		MetadataChecksum:           s.calculator.CalculateRaw(metadataBytes),
		DataChecksum:               s.calculator.CalculateRaw(dataBytes),
		MetadataChecksumNormalized: s.calculator.CalculateNormalized(metadataBytes),
		DataChecksumNormalized:     s.calculator.CalculateNormalized(dataBytes),
		Columns:                    len(header),
		Attributes:                 config.Attributes,
	}
	s.logger.Verbose("Run %s: %d columns", info.RunID, info.Columns)

	sink, err := s.sinkFactory(ctx, &config, s.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(ctx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close sink: %w", cerr))
		}
	}()

	if err := sink.Begin(ctx, info); err != nil {
		return err
	}

	compiler := compile.New(doc)
	columns, err := s.compileColumns(ctx, compiler, header, sink)
	if err != nil {
		return err
	}

	if config.MetadataOnly {
		s.logger.Info("✓ Inspected %d columns (rows skipped)", len(columns))
		return nil
	}

	rows, err := s.encodeRows(ctx, compiler, reader, columns, sink)
	if err != nil {
		return err
	}

	s.logger.Info("✓ Converted %d rows across %d columns", rows, len(columns))
	return nil
}

// compileColumns runs the per-column phases in strict order: resolve,
// missingness, then labels. Every column is fully set up before any
// cell is encoded, and a column's labels see its final missing-range
// table.
func (s *ConversionService) compileColumns(
	ctx context.Context,
	compiler *compile.Compiler,
	header []string,
	sink dtaforge.Sink,
) ([]*dtaforge.Column, error) {
	columns := make([]*dtaforge.Column, len(header))
	for i, name := range header {
		col := compiler.ResolveColumn(name, i)
		if err := compiler.CompileMissing(col); err != nil {
			return nil, err
		}
		s.logger.Verbose("Column %q: %s %s, %d missing range(s)",
			col.Name, col.Type, col.Format, len(col.MissingRanges()))

		if err := sink.WriteColumn(ctx, col); err != nil {
			return nil, err
		}
		err := compiler.CompileLabels(col, func(label dtaforge.Label) error {
			return sink.WriteLabel(ctx, label)
		})
		if err != nil {
			return nil, err
		}
		columns[i] = col
	}
	return columns, nil
}

// encodeRows encodes every data row and returns the row count. The row
// index handed to the sink is the zero-based data row position; the
// header row is not counted.
func (s *ConversionService) encodeRows(
	ctx context.Context,
	compiler *compile.Compiler,
	reader *csv.Reader,
	columns []*dtaforge.Column,
	sink dtaforge.Sink,
) (int, error) {
	rowIndex := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rowIndex, nil
		}
		if err != nil {
			return rowIndex, fmt.Errorf("failed to read data row %d: %w", rowIndex, err)
		}
		for i, cell := range record {
			value, err := compiler.EncodeCell(columns[i], cell)
			if err != nil {
				return rowIndex, fmt.Errorf("row %d, cell %q: %w", rowIndex, preview(cell), err)
			}
			if err := sink.WriteValue(ctx, rowIndex, columns[i], value); err != nil {
				return rowIndex, err
			}
		}
		rowIndex++
	}
}

// preview truncates cell text for diagnostics.
func preview(cell string) string {
	if len(cell) > dtaforge.MaxErrorPreviewLength {
		return cell[:dtaforge.MaxErrorPreviewLength] + "..."
	}
	return cell
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
