package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dstolpe/dtaforge/internal/files/filesystem"
	"github.com/dstolpe/dtaforge/internal/logging"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// recordingSink captures every sink call for assertions.
type recordingSink struct {
	info    dtaforge.DatasetInfo
	began   bool
	closed  bool
	columns []*dtaforge.Column
	labels  []dtaforge.Label
	values  []recordedValue

	beginErr error
	valueErr error
}

type recordedValue struct {
	row    int
	column string
	value  dtaforge.Value
}

func (r *recordingSink) Begin(_ context.Context, info dtaforge.DatasetInfo) error {
	r.began = true
	r.info = info
	return r.beginErr
}

func (r *recordingSink) WriteColumn(_ context.Context, col *dtaforge.Column) error {
	r.columns = append(r.columns, col)
	return nil
}

func (r *recordingSink) WriteLabel(_ context.Context, label dtaforge.Label) error {
	r.labels = append(r.labels, label)
	return nil
}

func (r *recordingSink) WriteValue(_ context.Context, rowIndex int, col *dtaforge.Column, value dtaforge.Value) error {
	if r.valueErr != nil {
		return r.valueErr
	}
	r.values = append(r.values, recordedValue{row: rowIndex, column: col.Name, value: value})
	return nil
}

func (r *recordingSink) Close(context.Context) error {
	r.closed = true
	return nil
}

func serviceWith(fs filesystem.FileSystem, sink dtaforge.Sink) *ConversionService {
	s := NewConversionService(fs, func(context.Context, *dtaforge.ConversionConfig, dtaforge.Logger) (dtaforge.Sink, error) {
		return sink, nil
	}, logging.NewNullLogger())
	s.newRunID = func() string { return "test-run" }
	return s
}

const surveyMetadata = `{
	"age": {
		"type": "numeric", "format": "NUMBER", "decimals": 0,
		"categories": [{"code": -9, "label": "unknown"}],
		"missing": {"type": "DISCRETE", "values": [-9]}
	},
	"city": {"type": "string"},
	"visit_date": {"type": "numeric", "format": "DATE"}
}`

const surveyData = "age,city,visit_date\n34,Berlin,1960-01-02\n-9,,\n"

// TestConvert_FullRun tests the complete workflow against an in-memory project
func TestConvert_FullRun(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	fs.AddFile("proj/metadata.json", []byte(surveyMetadata))
	fs.AddFile("proj/data.csv", []byte(surveyData))

	sink := &recordingSink{}
	svc := serviceWith(fs, sink)

	err := svc.Convert(context.Background(), dtaforge.ConversionConfig{SourcePath: "proj"})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if !sink.began || !sink.closed {
		t.Fatalf("Sink lifecycle incomplete: began=%v closed=%v", sink.began, sink.closed)
	}
	if sink.info.RunID != "test-run" || sink.info.Columns != 3 {
		t.Errorf("Unexpected dataset info: %+v", sink.info)
	}
	if sink.info.MetadataChecksum == "" || sink.info.DataChecksum == "" {
		t.Error("Expected input checksums in dataset info")
	}
	if sink.info.MetadataChecksumNormalized == "" || sink.info.DataChecksumNormalized == "" {
		t.Error("Expected normalized input checksums in dataset info")
	}

	if len(sink.columns) != 3 {
		t.Fatalf("Expected 3 columns, got %d", len(sink.columns))
	}
	if sink.columns[0].Name != "age" || sink.columns[0].Type != dtaforge.StorageDouble {
		t.Errorf("Column 0: %+v", sink.columns[0])
	}
	if sink.columns[2].Name != "visit_date" || !sink.columns[2].IsDate {
		t.Errorf("Column 2: %+v", sink.columns[2])
	}

	if len(sink.labels) != 1 || sink.labels[0].Text != "unknown" || sink.labels[0].Code.Tag != 'a' {
		t.Errorf("Unexpected labels: %+v", sink.labels)
	}

	if len(sink.values) != 6 {
		t.Fatalf("Expected 6 values, got %d", len(sink.values))
	}
	// Row 0: ordinary values.
	if !sink.values[0].value.Equal(dtaforge.DoubleValue(34)) {
		t.Errorf("Value (0, age) = %+v", sink.values[0].value)
	}
	if !sink.values[1].value.Equal(dtaforge.StringValue("Berlin")) {
		t.Errorf("Value (0, city) = %+v", sink.values[1].value)
	}
	if !sink.values[2].value.Equal(dtaforge.Int32Value(1)) {
		t.Errorf("Value (0, visit_date) = %+v", sink.values[2].value)
	}
	// Row 1: tagged missing, then system missing for the empty cells.
	if v := sink.values[3].value; !v.TaggedMissing || v.Tag != 'a' || v.F64 != -9 {
		t.Errorf("Value (1, age) = %+v", v)
	}
	if !sink.values[4].value.SystemMissing || !sink.values[5].value.SystemMissing {
		t.Error("Empty cells must be system-missing")
	}
	if sink.values[3].row != 1 {
		t.Errorf("Row index = %d, want 1", sink.values[3].row)
	}
}

// TestConvert_MetadataNotFound tests the dedicated sentinel for absent metadata
func TestConvert_MetadataNotFound(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	fs.AddFile("proj/data.csv", []byte("a\n1\n"))
	svc := serviceWith(fs, &recordingSink{})

	err := svc.Convert(context.Background(), dtaforge.ConversionConfig{SourcePath: "proj"})
	if !errors.Is(err, dtaforge.ErrMetadataNotFound) {
		t.Errorf("Expected ErrMetadataNotFound, got %v", err)
	}
}

// TestConvert_MalformedMetadataHasPosition tests line/column diagnostics
func TestConvert_MalformedMetadataHasPosition(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	fs.AddFile("proj/metadata.json", []byte("{\n  \"age\": }\n}"))
	fs.AddFile("proj/data.csv", []byte("age\n1\n"))
	svc := serviceWith(fs, &recordingSink{})

	err := svc.Convert(context.Background(), dtaforge.ConversionConfig{SourcePath: "proj"})
	if !errors.Is(err, dtaforge.ErrMalformedMetadata) {
		t.Fatalf("Expected ErrMalformedMetadata, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected a line/column position in %q", err)
	}
}

// TestConvert_BadCellIdentifiesRow tests encode failures carrying the row index
func TestConvert_BadCellIdentifiesRow(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	fs.AddFile("proj/metadata.json", []byte(`{"age": {"type": "numeric", "format": "NUMBER"}}`))
	fs.AddFile("proj/data.csv", []byte("age\n1\nnot-a-number\n"))
	svc := serviceWith(fs, &recordingSink{})

	err := svc.Convert(context.Background(), dtaforge.ConversionConfig{SourcePath: "proj"})
	if !errors.Is(err, dtaforge.ErrBadLiteral) {
		t.Fatalf("Expected ErrBadLiteral, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 1") {
		t.Errorf("Expected the failing row in %q", err)
	}
}

// TestConvert_SinkErrorsPropagate tests Begin and WriteValue failures aborting
func TestConvert_SinkErrorsPropagate(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	fs.AddFile("proj/metadata.json", []byte(surveyMetadata))
	fs.AddFile("proj/data.csv", []byte(surveyData))

	sinkErr := fmt.Errorf("disk full: %w", dtaforge.ErrSinkFailed)

	sink := &recordingSink{beginErr: sinkErr}
	if err := serviceWith(fs, sink).Convert(context.Background(), dtaforge.ConversionConfig{SourcePath: "proj"}); !errors.Is(err, dtaforge.ErrSinkFailed) {
		t.Errorf("Begin error must propagate, got %v", err)
	}
	if !sink.closed {
		t.Error("Sink must be closed after a failed Begin")
	}

	sink = &recordingSink{valueErr: sinkErr}
	if err := serviceWith(fs, sink).Convert(context.Background(), dtaforge.ConversionConfig{SourcePath: "proj"}); !errors.Is(err, dtaforge.ErrSinkFailed) {
		t.Errorf("WriteValue error must propagate, got %v", err)
	}
}

// TestConvert_InvalidConfig tests validation running before any file access
func TestConvert_InvalidConfig(t *testing.T) {
	svc := serviceWith(filesystem.NewMemoryFileSystem(), &recordingSink{})
	err := svc.Convert(context.Background(), dtaforge.ConversionConfig{})
	if !errors.Is(err, dtaforge.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

// TestConvert_AlternateFileNames tests MetadataFile/DataFile overrides
func TestConvert_AlternateFileNames(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	fs.AddFile("proj/vars.json", []byte(`{"age": {"type": "numeric", "format": "NUMBER"}}`))
	fs.AddFile("proj/survey.csv", []byte("age\n1\n"))

	sink := &recordingSink{}
	err := serviceWith(fs, sink).Convert(context.Background(), dtaforge.ConversionConfig{
		SourcePath:   "proj",
		MetadataFile: "vars.json",
		DataFile:     "survey.csv",
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if len(sink.values) != 1 {
		t.Errorf("Expected 1 value, got %d", len(sink.values))
	}
}

func TestConvert_MetadataOnlySkipsRows(t *testing.T) {
	fs := filesystem.NewMemoryFileSystem()
	fs.AddFile("proj/metadata.json", []byte(surveyMetadata))
	// A broken cell must not matter when only metadata is inspected.
	fs.AddFile("proj/data.csv", []byte("age,city,visit_date\nnot-a-number,Berlin,1960-01-02\n"))

	sink := &recordingSink{}
	svc := serviceWith(fs, sink)

	err := svc.Convert(context.Background(), dtaforge.ConversionConfig{
		SourcePath:   "proj",
		MetadataOnly: true,
	})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if len(sink.columns) != 3 {
		t.Errorf("Expected 3 columns, got %d", len(sink.columns))
	}
	if len(sink.values) != 0 {
		t.Errorf("Expected no values in metadata-only mode, got %d", len(sink.values))
	}
	if !sink.closed {
		t.Error("Expected sink to be closed")
	}
}

func TestConvert_NormalizedChecksumsIgnoreLineEndings(t *testing.T) {
	crlfData := "age,city,visit_date\r\n34,Berlin,1960-01-02\r\n-9,,\r\n"

	runWith := func(data string) dtaforge.DatasetInfo {
		fs := filesystem.NewMemoryFileSystem()
		fs.AddFile("proj/metadata.json", []byte(surveyMetadata))
		fs.AddFile("proj/data.csv", []byte(data))

		sink := &recordingSink{}
		svc := serviceWith(fs, sink)
		if err := svc.Convert(context.Background(), dtaforge.ConversionConfig{SourcePath: "proj"}); err != nil {
			t.Fatalf("Convert failed: %v", err)
		}
		return sink.info
	}

	lf := runWith(surveyData)
	crlf := runWith(crlfData)

	if lf.DataChecksum == crlf.DataChecksum {
		t.Error("Raw digests must differ for different line endings")
	}
	if lf.DataChecksumNormalized != crlf.DataChecksumNormalized {
		t.Errorf("Normalized digests must match across line endings: %q vs %q",
			lf.DataChecksumNormalized, crlf.DataChecksumNormalized)
	}
}
