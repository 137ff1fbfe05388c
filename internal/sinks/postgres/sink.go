// Package postgres implements the relational output sink. Converted
// datasets land in long format: one row per cell, with column
// descriptors, missing ranges, and value labels in side tables, all
// keyed by run ID.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dstolpe/dtaforge/internal/contract"
	"github.com/dstolpe/dtaforge/internal/db"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

// DefaultBatchSize is the number of cells buffered before a multi-row
// INSERT is issued.
const DefaultBatchSize = 200

// Config controls where and how the sink writes.
type Config struct {
	// Schema is the PostgreSQL schema holding the dataset tables.
	// Defaults to contract.DefaultSchema.
	Schema string

	// SchemaVersion selects the contract version. Empty means latest.
	SchemaVersion string

	// Overwrite drops and recreates the schema before writing. The
	// approver is consulted first when the schema already exists.
	Overwrite bool

	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int
}

// Sink writes a conversion run into PostgreSQL.
//
// Not safe for concurrent use; the converter drives it from a single
// goroutine.
type Sink struct {
	connect  func(ctx context.Context) (dtaforge.DBConnection, func(), error)
	approver dtaforge.Approver
	logger   dtaforge.Logger
	cfg      Config

	conn     dtaforge.DBConnection
	release  func()
	runID    string
	labelSeq map[string]int
	pending  []pendingCell
	rowCount int64
}

type pendingCell struct {
	rowIndex int
	position int
	value    dtaforge.Value
}

// New creates a Sink that connects through the given connector.
// Panics if any dependency is nil.
func New(connector dtaforge.Connector, approver dtaforge.Approver, logger dtaforge.Logger, cfg Config) *Sink {
	if connector == nil {
		panic("connector cannot be nil")
	}
	s := newSink(approver, logger, cfg)
	s.connect = func(ctx context.Context) (dtaforge.DBConnection, func(), error) {
		pool, err := connector.Connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			pool.Close()
			if closer, ok := connector.(io.Closer); ok {
				closer.Close()
			}
		}
		return db.NewPoolAdapter(pool), release, nil
	}
	return s
}

// NewWithConnection creates a Sink over an already-established
// connection. The caller retains ownership of the connection.
func NewWithConnection(conn dtaforge.DBConnection, approver dtaforge.Approver, logger dtaforge.Logger, cfg Config) *Sink {
	if conn == nil {
		panic("conn cannot be nil")
	}
	s := newSink(approver, logger, cfg)
	s.connect = func(context.Context) (dtaforge.DBConnection, func(), error) {
		return conn, func() {}, nil
	}
	return s
}

func newSink(approver dtaforge.Approver, logger dtaforge.Logger, cfg Config) *Sink {
	if approver == nil {
		panic("approver cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.Schema == "" {
		cfg.Schema = contract.DefaultSchema
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Sink{
		approver: approver,
		logger:   logger,
		cfg:      cfg,
		labelSeq: make(map[string]int),
	}
}

// Begin connects, prepares the schema, and registers the run. When
// Overwrite is set and the schema already exists, the approver decides
// whether the existing data is dropped.
func (s *Sink) Begin(ctx context.Context, info dtaforge.DatasetInfo) error {
	if !contract.ValidIdent(s.cfg.Schema) {
		return fmt.Errorf("invalid schema name %q: %w", s.cfg.Schema, dtaforge.ErrInvalidConfig)
	}

	conn, release, err := s.connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", dtaforge.ErrConnectionFailed, err)
	}
	s.conn = conn
	s.release = release

	if s.cfg.Overwrite {
		if err := s.overwriteSchema(ctx); err != nil {
			return err
		}
	}

	if _, err := contract.Apply(ctx, s.conn, s.cfg.SchemaVersion, s.cfg.Schema); err != nil {
		return fmt.Errorf("%w: %w", dtaforge.ErrSinkFailed, err)
	}

	attrs, err := json.Marshal(attributesOrEmpty(info.Attributes))
	if err != nil {
		return fmt.Errorf("%w: encoding attributes: %w", dtaforge.ErrSinkFailed, err)
	}

	_, err = s.conn.Exec(ctx,
		`INSERT INTO `+s.table("runs")+
			` (run_id, metadata_path, data_path, metadata_sha256, data_sha256,
			  metadata_sha256_normalized, data_sha256_normalized, column_count, attributes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)`,
		info.RunID, info.MetadataPath, info.DataPath,
		info.MetadataChecksum, info.DataChecksum,
		info.MetadataChecksumNormalized, info.DataChecksumNormalized,
		info.Columns, string(attrs))
	if err != nil {
		return fmt.Errorf("%w: registering run %s: %w", dtaforge.ErrSinkFailed, info.RunID, err)
	}

	s.runID = info.RunID
	s.logger.Verbose("Registered run %s in schema %s", info.RunID, s.cfg.Schema)
	return nil
}

func (s *Sink) overwriteSchema(ctx context.Context) error {
	exists, err := s.schemaExists(ctx)
	if err != nil {
		return fmt.Errorf("%w: checking schema %s: %w", dtaforge.ErrSinkFailed, s.cfg.Schema, err)
	}
	if !exists {
		return nil
	}

	approved, err := s.approver.RequestApproval(ctx, s.cfg.Schema)
	if err != nil {
		return fmt.Errorf("approval for schema %s: %w", s.cfg.Schema, err)
	}
	if !approved {
		return fmt.Errorf("schema %s: %w", s.cfg.Schema, dtaforge.ErrApprovalDenied)
	}

	s.logger.Info("Dropping schema %s", s.cfg.Schema)
	if _, err := s.conn.Exec(ctx, `DROP SCHEMA IF EXISTS `+s.cfg.Schema+` CASCADE`); err != nil {
		return fmt.Errorf("%w: dropping schema %s: %w", dtaforge.ErrSinkFailed, s.cfg.Schema, err)
	}
	return nil
}

func (s *Sink) schemaExists(ctx context.Context) (bool, error) {
	var exists bool
	row := s.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		s.cfg.Schema)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// WriteColumn stores the column descriptor and its missing ranges.
func (s *Sink) WriteColumn(ctx context.Context, col *dtaforge.Column) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO `+s.table("columns")+
			` (run_id, position, name, storage, format, is_date, is_datetime)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.runID, col.Index, col.Name, col.Type.String(), col.Format, col.IsDate, col.IsDateTime)
	if err != nil {
		return fmt.Errorf("%w: column %q: %w", dtaforge.ErrSinkFailed, col.Name, err)
	}

	for seq, r := range col.MissingRanges() {
		loDouble, loInt32, _ := payload(r.Lo)
		hiDouble, hiInt32, _ := payload(r.Hi)
		_, err := s.conn.Exec(ctx,
			`INSERT INTO `+s.table("missing_ranges")+
				` (run_id, position, seq, lo_double, lo_int32, hi_double, hi_int32, tag)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			s.runID, col.Index, seq, loDouble, loInt32, hiDouble, hiInt32, string(r.Tag))
		if err != nil {
			return fmt.Errorf("%w: column %q range %c: %w", dtaforge.ErrSinkFailed, col.Name, r.Tag, err)
		}
	}
	return nil
}

// WriteLabel stores one value label.
func (s *Sink) WriteLabel(ctx context.Context, label dtaforge.Label) error {
	seq := s.labelSeq[label.Column]
	s.labelSeq[label.Column] = seq + 1

	codeDouble, codeInt32, codeString := payload(label.Code)
	_, err := s.conn.Exec(ctx,
		`INSERT INTO `+s.table("labels")+
			` (run_id, column_name, seq, code_double, code_int32, code_string, tag, label)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.runID, label.Column, seq, codeDouble, codeInt32, codeString, tagOrNil(label.Code), label.Text)
	if err != nil {
		return fmt.Errorf("%w: label %q on %q: %w", dtaforge.ErrSinkFailed, label.Text, label.Column, err)
	}
	return nil
}

// WriteValue buffers one cell, flushing a batch insert when full.
func (s *Sink) WriteValue(ctx context.Context, rowIndex int, col *dtaforge.Column, value dtaforge.Value) error {
	s.pending = append(s.pending, pendingCell{rowIndex: rowIndex, position: col.Index, value: value})
	if int64(rowIndex)+1 > s.rowCount {
		s.rowCount = int64(rowIndex) + 1
	}
	if len(s.pending) >= s.cfg.BatchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *Sink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO ` + s.table("cells") +
		` (run_id, row_index, position, value_double, value_int32, value_string, system_missing, tag) VALUES `)
	args := make([]any, 0, len(s.pending)*8)
	for i, cell := range s.pending {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)

		valueDouble, valueInt32, valueString := payload(cell.value)
		args = append(args, s.runID, cell.rowIndex, cell.position,
			valueDouble, valueInt32, valueString, cell.value.SystemMissing, tagOrNil(cell.value))
	}

	n := len(s.pending)
	s.pending = s.pending[:0]

	// Pin one pooled connection per batch so a flush never interleaves
	// with token refreshes on other pool slots.
	pc, err := s.conn.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: acquiring connection for %d cells: %w", dtaforge.ErrSinkFailed, n, err)
	}
	defer pc.Release()

	if _, err := pc.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("%w: inserting %d cells: %w", dtaforge.ErrSinkFailed, n, err)
	}
	return nil
}

// Close flushes buffered cells, finalizes the run row, and releases the
// connection. Safe to call after a failed Begin.
func (s *Sink) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	defer func() {
		if s.release != nil {
			s.release()
		}
		s.conn = nil
		s.release = nil
	}()

	var errs []error
	if err := s.flush(ctx); err != nil {
		errs = append(errs, err)
	}

	if s.runID != "" && len(errs) == 0 {
		_, err := s.conn.Exec(ctx,
			`UPDATE `+s.table("runs")+` SET row_count = $1 WHERE run_id = $2`,
			s.rowCount, s.runID)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: finalizing run %s: %w", dtaforge.ErrSinkFailed, s.runID, err))
		}
	}

	return errors.Join(errs...)
}

func (s *Sink) table(name string) string {
	return s.cfg.Schema + "." + name
}

// payload splits a value into nullable SQL parameters. System-missing
// values carry no payload; the system_missing flag is the record.
func payload(v dtaforge.Value) (*float64, *int32, *string) {
	if v.SystemMissing {
		return nil, nil, nil
	}
	switch v.Type {
	case dtaforge.StorageDouble:
		f := v.F64
		return &f, nil, nil
	case dtaforge.StorageInt32:
		i := v.I32
		return nil, &i, nil
	case dtaforge.StorageString:
		str := v.Str
		return nil, nil, &str
	default:
		return nil, nil, nil
	}
}

func tagOrNil(v dtaforge.Value) *string {
	if !v.TaggedMissing {
		return nil
	}
	tag := string(v.Tag)
	return &tag
}

func attributesOrEmpty(attrs map[string]string) map[string]string {
	if attrs == nil {
		return map[string]string{}
	}
	return attrs
}

// Compile-time interface check.
var _ dtaforge.Sink = (*Sink)(nil)
