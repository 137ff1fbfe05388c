package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
	"github.com/dstolpe/dtaforge/internal/logging"
)

// mockConn records executed SQL and scripts QueryRow answers.
type mockConn struct {
	execs        []execCall
	execErr      error
	acquireErr   error
	schemaExists bool
	queryErr     error
}

type execCall struct {
	sql  string
	args []any
}

func (m *mockConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execs = append(m.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, m.execErr
}

func (m *mockConn) QueryRow(ctx context.Context, sql string, args ...any) dtaforge.Row {
	return &mockRow{exists: m.schemaExists, err: m.queryErr}
}

func (m *mockConn) Acquire(ctx context.Context) (dtaforge.PooledConnection, error) {
	if m.acquireErr != nil {
		return nil, m.acquireErr
	}
	return &pooledMock{conn: m}, nil
}

// pooledMock delegates to the owning mockConn so batch inserts land in
// the same exec log.
type pooledMock struct {
	conn     *mockConn
	released bool
}

func (p *pooledMock) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.conn.Exec(ctx, sql, args...)
}

func (p *pooledMock) Release() {
	p.released = true
}

type mockRow struct {
	exists bool
	err    error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if b, ok := dest[0].(*bool); ok {
		*b = r.exists
	}
	return nil
}

// approverFunc adapts a function to the Approver interface.
type approverFunc func(ctx context.Context, target string) (bool, error)

func (f approverFunc) RequestApproval(ctx context.Context, target string) (bool, error) {
	return f(ctx, target)
}

func approveAlways(context.Context, string) (bool, error) { return true, nil }
func denyAlways(context.Context, string) (bool, error)    { return false, nil }

func sinkOver(conn dtaforge.DBConnection, approve approverFunc, cfg Config) *Sink {
	return NewWithConnection(conn, approve, logging.NewNullLogger(), cfg)
}

func testInfo() dtaforge.DatasetInfo {
	return dtaforge.DatasetInfo{
		RunID:                      "run-1",
		MetadataPath:               "metadata.json",
		DataPath:                   "data.csv",
		MetadataChecksum:           "aaaa",
		DataChecksum:               "bbbb",
		MetadataChecksumNormalized: "aaaa-norm",
		DataChecksumNormalized:     "bbbb-norm",
		Columns:                    2,
	}
}

// findExec returns the recorded calls whose SQL contains the fragment.
func findExec(conn *mockConn, fragment string) []execCall {
	var out []execCall
	for _, c := range conn.execs {
		if strings.Contains(c.sql, fragment) {
			out = append(out, c)
		}
	}
	return out
}

// TestBegin_AppliesSchemaAndRegistersRun tests the happy-path Begin sequence
func TestBegin_AppliesSchemaAndRegistersRun(t *testing.T) {
	conn := &mockConn{}
	sink := sinkOver(conn, approveAlways, Config{})

	if err := sink.Begin(context.Background(), testInfo()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if len(findExec(conn, "CREATE SCHEMA IF NOT EXISTS dtaforge")) != 1 {
		t.Error("Expected contract SQL to be applied")
	}
	runs := findExec(conn, "INSERT INTO dtaforge.runs")
	if len(runs) != 1 {
		t.Fatalf("Expected one run insert, got %d", len(runs))
	}
	if runs[0].args[0] != "run-1" {
		t.Errorf("Run insert run_id = %v, want run-1", runs[0].args[0])
	}
	if runs[0].args[5] != "aaaa-norm" || runs[0].args[6] != "bbbb-norm" {
		t.Errorf("Run insert normalized digests = %v, %v, want aaaa-norm, bbbb-norm",
			runs[0].args[5], runs[0].args[6])
	}
	if runs[0].args[7] != 2 {
		t.Errorf("Run insert column_count = %v, want 2", runs[0].args[7])
	}
}

// TestBegin_OverwriteDropsExistingSchema tests the approved overwrite flow
func TestBegin_OverwriteDropsExistingSchema(t *testing.T) {
	conn := &mockConn{schemaExists: true}
	var approvedTarget string
	approve := approverFunc(func(_ context.Context, target string) (bool, error) {
		approvedTarget = target
		return true, nil
	})
	sink := sinkOver(conn, approve, Config{Overwrite: true})

	if err := sink.Begin(context.Background(), testInfo()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	if approvedTarget != "dtaforge" {
		t.Errorf("Approver saw target %q, want dtaforge", approvedTarget)
	}
	if len(findExec(conn, "DROP SCHEMA IF EXISTS dtaforge CASCADE")) != 1 {
		t.Error("Expected schema drop after approval")
	}
}

// TestBegin_OverwriteDenied tests that denial aborts before any drop
func TestBegin_OverwriteDenied(t *testing.T) {
	conn := &mockConn{schemaExists: true}
	sink := sinkOver(conn, denyAlways, Config{Overwrite: true})

	err := sink.Begin(context.Background(), testInfo())
	if !errors.Is(err, dtaforge.ErrApprovalDenied) {
		t.Fatalf("Expected ErrApprovalDenied, got %v", err)
	}
	if len(findExec(conn, "DROP SCHEMA")) != 0 {
		t.Error("Schema must not be dropped after denial")
	}

	// Close after a failed Begin must not error.
	if err := sink.Close(context.Background()); err != nil {
		t.Errorf("Close after failed Begin: %v", err)
	}
}

// TestBegin_OverwriteFreshSchemaSkipsApproval tests that a missing schema needs no approval
func TestBegin_OverwriteFreshSchemaSkipsApproval(t *testing.T) {
	conn := &mockConn{schemaExists: false}
	asked := false
	approve := approverFunc(func(context.Context, string) (bool, error) {
		asked = true
		return false, nil
	})
	sink := sinkOver(conn, approve, Config{Overwrite: true})

	if err := sink.Begin(context.Background(), testInfo()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if asked {
		t.Error("Approver must not be consulted when the schema does not exist")
	}
}

// TestBegin_InvalidSchemaName tests schema ident validation
func TestBegin_InvalidSchemaName(t *testing.T) {
	conn := &mockConn{}
	sink := sinkOver(conn, approveAlways, Config{Schema: `bad"; DROP`})

	err := sink.Begin(context.Background(), testInfo())
	if !errors.Is(err, dtaforge.ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
	if len(conn.execs) != 0 {
		t.Error("No SQL may run with an invalid schema name")
	}
}

// TestWriteColumn_EmitsDescriptorAndRanges tests column plus range inserts
func TestWriteColumn_EmitsDescriptorAndRanges(t *testing.T) {
	conn := &mockConn{}
	sink := sinkOver(conn, approveAlways, Config{})
	ctx := context.Background()
	if err := sink.Begin(ctx, testInfo()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	col := &dtaforge.Column{Name: "age", Index: 1, Type: dtaforge.StorageDouble, Format: "%9.0f"}
	if _, err := col.AddMissingRange(dtaforge.DoubleValue(-9), dtaforge.DoubleValue(-9)); err != nil {
		t.Fatal(err)
	}
	if err := sink.WriteColumn(ctx, col); err != nil {
		t.Fatalf("WriteColumn failed: %v", err)
	}

	cols := findExec(conn, "INSERT INTO dtaforge.columns")
	if len(cols) != 1 {
		t.Fatalf("Expected one column insert, got %d", len(cols))
	}
	if cols[0].args[2] != "age" || cols[0].args[3] != "double" {
		t.Errorf("Unexpected column args: %v", cols[0].args)
	}

	ranges := findExec(conn, "INSERT INTO dtaforge.missing_ranges")
	if len(ranges) != 1 {
		t.Fatalf("Expected one range insert, got %d", len(ranges))
	}
	lo, ok := ranges[0].args[3].(*float64)
	if !ok || lo == nil || *lo != -9 {
		t.Errorf("Range lo_double = %v, want -9", ranges[0].args[3])
	}
	if ranges[0].args[7] != "a" {
		t.Errorf("Range tag = %v, want a", ranges[0].args[7])
	}
}

// TestWriteLabel_SequencesPerColumn tests per-column label sequence numbers
func TestWriteLabel_SequencesPerColumn(t *testing.T) {
	conn := &mockConn{}
	sink := sinkOver(conn, approveAlways, Config{})
	ctx := context.Background()
	if err := sink.Begin(ctx, testInfo()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	labels := []dtaforge.Label{
		{Column: "age", Code: dtaforge.DoubleValue(-9).Tagged('a'), Text: "refused"},
		{Column: "age", Code: dtaforge.DoubleValue(1), Text: "one"},
		{Column: "city", Code: dtaforge.StringValue("NYC"), Text: "New York"},
	}
	for _, l := range labels {
		if err := sink.WriteLabel(ctx, l); err != nil {
			t.Fatalf("WriteLabel failed: %v", err)
		}
	}

	inserts := findExec(conn, "INSERT INTO dtaforge.labels")
	if len(inserts) != 3 {
		t.Fatalf("Expected 3 label inserts, got %d", len(inserts))
	}
	// seq restarts per column
	if inserts[0].args[2] != 0 || inserts[1].args[2] != 1 || inserts[2].args[2] != 0 {
		t.Errorf("Label seqs = %v %v %v, want 0 1 0",
			inserts[0].args[2], inserts[1].args[2], inserts[2].args[2])
	}
	// tagged code carries the tag letter
	tag, ok := inserts[0].args[6].(*string)
	if !ok || tag == nil || *tag != "a" {
		t.Errorf("Label tag = %v, want a", inserts[0].args[6])
	}
	if inserts[1].args[6] != (*string)(nil) {
		t.Errorf("Untagged label tag = %v, want nil", inserts[1].args[6])
	}
	// string code lands in code_string
	code, ok := inserts[2].args[5].(*string)
	if !ok || code == nil || *code != "NYC" {
		t.Errorf("String label code = %v, want NYC", inserts[2].args[5])
	}
}

// TestWriteValue_BatchesAndFinalizes tests cell batching and the run row update
func TestWriteValue_BatchesAndFinalizes(t *testing.T) {
	conn := &mockConn{}
	sink := sinkOver(conn, approveAlways, Config{BatchSize: 2})
	ctx := context.Background()
	if err := sink.Begin(ctx, testInfo()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	col := &dtaforge.Column{Name: "age", Index: 0, Type: dtaforge.StorageDouble}
	values := []dtaforge.Value{
		dtaforge.DoubleValue(31),
		dtaforge.DoubleValue(-9).Tagged('a'),
		dtaforge.SystemMissingValue(),
	}
	for row, v := range values {
		if err := sink.WriteValue(ctx, row, col, v); err != nil {
			t.Fatalf("WriteValue row %d failed: %v", row, err)
		}
	}

	// Batch of 2 flushed mid-stream, third cell still pending.
	if got := len(findExec(conn, "INSERT INTO dtaforge.cells")); got != 1 {
		t.Fatalf("Expected 1 cell batch before Close, got %d", got)
	}

	if err := sink.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	batches := findExec(conn, "INSERT INTO dtaforge.cells")
	if len(batches) != 2 {
		t.Fatalf("Expected 2 cell batches after Close, got %d", len(batches))
	}

	// First batch: two cells, 16 args.
	if len(batches[0].args) != 16 {
		t.Errorf("First batch carries %d args, want 16", len(batches[0].args))
	}
	// Tagged cell keeps its payload.
	tagged, ok := batches[0].args[11].(*float64)
	if !ok || tagged == nil || *tagged != -9 {
		t.Errorf("Tagged cell value_double = %v, want -9", batches[0].args[11])
	}
	// System-missing cell has no payload, flag set.
	if batches[1].args[3] != (*float64)(nil) {
		t.Errorf("System-missing value_double = %v, want nil", batches[1].args[3])
	}
	if batches[1].args[6] != true {
		t.Errorf("System-missing flag = %v, want true", batches[1].args[6])
	}

	// Run finalized with the observed row count.
	updates := findExec(conn, "UPDATE dtaforge.runs SET row_count")
	if len(updates) != 1 {
		t.Fatalf("Expected one run update, got %d", len(updates))
	}
	if updates[0].args[0] != int64(3) {
		t.Errorf("row_count = %v, want 3", updates[0].args[0])
	}
}

// TestCustomSchema_RoutesAllTables tests schema-qualified table names
func TestCustomSchema_RoutesAllTables(t *testing.T) {
	conn := &mockConn{}
	sink := sinkOver(conn, approveAlways, Config{Schema: "survey"})
	ctx := context.Background()
	if err := sink.Begin(ctx, testInfo()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	col := &dtaforge.Column{Name: "age", Index: 0, Type: dtaforge.StorageDouble}
	if err := sink.WriteColumn(ctx, col); err != nil {
		t.Fatalf("WriteColumn failed: %v", err)
	}
	if err := sink.WriteValue(ctx, 0, col, dtaforge.DoubleValue(1)); err != nil {
		t.Fatalf("WriteValue failed: %v", err)
	}
	if err := sink.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for _, c := range conn.execs {
		if strings.Contains(c.sql, "dtaforge.") {
			t.Errorf("SQL references default schema: %s", c.sql)
		}
	}
	if len(findExec(conn, "survey.cells")) == 0 {
		t.Error("Cells not routed to the custom schema")
	}
}

// TestWriteValue_ErrorWrapsSinkFailed tests error classification on insert failure
func TestWriteValue_ErrorWrapsSinkFailed(t *testing.T) {
	conn := &mockConn{}
	sink := sinkOver(conn, approveAlways, Config{BatchSize: 1})
	ctx := context.Background()
	if err := sink.Begin(ctx, testInfo()); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	conn.execErr = errors.New("disk full")
	col := &dtaforge.Column{Name: "age", Index: 0, Type: dtaforge.StorageDouble}
	err := sink.WriteValue(ctx, 0, col, dtaforge.DoubleValue(1))
	if !errors.Is(err, dtaforge.ErrSinkFailed) {
		t.Fatalf("Expected ErrSinkFailed, got %v", err)
	}
}
