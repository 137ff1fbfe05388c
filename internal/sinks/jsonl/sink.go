// Package jsonl implements an inspection sink that streams every
// compiled artifact of a conversion run as one JSON object per line.
// It exists to make compiled columns, missing ranges, labels, and
// encoded values diffable and greppable without a database.
package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// Sink writes JSON lines to a writer. Records appear in the converter's
// call order: one dataset record, then column/label records, then value
// records.
// Thread-Safety: NOT safe for concurrent use; the converter is
// single-threaded by contract.
type Sink struct {
	enc    *json.Encoder
	closer io.Closer
}

// New creates a Sink over an existing writer. The writer is not closed
// by Close.
func New(w io.Writer) *Sink {
	return &Sink{enc: json.NewEncoder(w)}
}

// Create creates a Sink writing to a new file at path. The file is
// closed by Close.
func Create(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return &Sink{enc: json.NewEncoder(f), closer: f}, nil
}

type datasetRecord struct {
	Record                     string            `json:"record"`
	RunID                      string            `json:"run_id"`
	MetadataPath               string            `json:"metadata_path"`
	DataPath                   string            `json:"data_path"`
	MetadataChecksum           string            `json:"metadata_sha256"`
	DataChecksum               string            `json:"data_sha256"`
	MetadataChecksumNormalized string            `json:"metadata_sha256_normalized"`
	DataChecksumNormalized     string            `json:"data_sha256_normalized"`
	Columns                    int               `json:"columns"`
	Attributes                 map[string]string `json:"attributes,omitempty"`
}

type missingRangeRecord struct {
	Lo  valueRecord `json:"lo"`
	Hi  valueRecord `json:"hi"`
	Tag string      `json:"tag"`
}

type columnRecord struct {
	Record        string               `json:"record"`
	Name          string               `json:"name"`
	Index         int                  `json:"index"`
	Type          string               `json:"type"`
	Format        string               `json:"format,omitempty"`
	IsDate        bool                 `json:"is_date,omitempty"`
	IsDateTime    bool                 `json:"is_date_time,omitempty"`
	MissingRanges []missingRangeRecord `json:"missing_ranges,omitempty"`
}

type labelRecord struct {
	Record string      `json:"record"`
	Column string      `json:"column"`
	Code   valueRecord `json:"code"`
	Text   string      `json:"text"`
}

type cellRecord struct {
	Record string      `json:"record"`
	Row    int         `json:"row"`
	Column string      `json:"column"`
	Value  valueRecord `json:"value"`
}

// valueRecord is the wire form of a Value. The system-missing NaN
// payload is not representable as a JSON number, so system-missing
// values carry a flag and no payload.
type valueRecord struct {
	Type          string   `json:"type"`
	Double        *float64 `json:"double,omitempty"`
	Int32         *int32   `json:"int32,omitempty"`
	String        *string  `json:"string,omitempty"`
	SystemMissing bool     `json:"system_missing,omitempty"`
	Tag           string   `json:"tag,omitempty"`
}

func encodeValue(v dtaforge.Value) valueRecord {
	rec := valueRecord{Type: v.Type.String()}
	if v.SystemMissing {
		rec.SystemMissing = true
		return rec
	}
	switch v.Type {
	case dtaforge.StorageDouble:
		f := v.F64
		rec.Double = &f
	case dtaforge.StorageInt32:
		i := v.I32
		rec.Int32 = &i
	case dtaforge.StorageString:
		s := v.Str
		rec.String = &s
	}
	if v.TaggedMissing {
		rec.Tag = string(v.Tag)
	}
	return rec
}

func (s *Sink) emit(record interface{}) error {
	if err := s.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to write record: %w: %w", err, dtaforge.ErrSinkFailed)
	}
	return nil
}

func (s *Sink) Begin(_ context.Context, info dtaforge.DatasetInfo) error {
	return s.emit(datasetRecord{
		Record:                     "dataset",
		RunID:                      info.RunID,
		MetadataPath:               info.MetadataPath,
		DataPath:                   info.DataPath,
		MetadataChecksum:           info.MetadataChecksum,
		DataChecksum:               info.DataChecksum,
		MetadataChecksumNormalized: info.MetadataChecksumNormalized,
		DataChecksumNormalized:     info.DataChecksumNormalized,
		Columns:                    info.Columns,
		Attributes:                 info.Attributes,
	})
}

func (s *Sink) WriteColumn(_ context.Context, col *dtaforge.Column) error {
	rec := columnRecord{
		Record:     "column",
		Name:       col.Name,
		Index:      col.Index,
		Type:       col.Type.String(),
		Format:     col.Format,
		IsDate:     col.IsDate,
		IsDateTime: col.IsDateTime,
	}
	for _, r := range col.MissingRanges() {
		rec.MissingRanges = append(rec.MissingRanges, missingRangeRecord{
			Lo:  encodeValue(r.Lo),
			Hi:  encodeValue(r.Hi),
			Tag: string(r.Tag),
		})
	}
	return s.emit(rec)
}

func (s *Sink) WriteLabel(_ context.Context, label dtaforge.Label) error {
	return s.emit(labelRecord{
		Record: "label",
		Column: label.Column,
		Code:   encodeValue(label.Code),
		Text:   label.Text,
	})
}

func (s *Sink) WriteValue(_ context.Context, rowIndex int, col *dtaforge.Column, value dtaforge.Value) error {
	return s.emit(cellRecord{
		Record: "value",
		Row:    rowIndex,
		Column: col.Name,
		Value:  encodeValue(value),
	})
}

func (s *Sink) Close(context.Context) error {
	if s.closer == nil {
		return nil
	}
	if err := s.closer.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}
