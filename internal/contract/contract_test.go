package contract

import (
	"strings"
	"testing"
)

func TestLoad_Latest(t *testing.T) {
	sql, version, err := Load("")
	if err != nil {
		t.Fatalf("Load('') failed: %v", err)
	}
	if version != Latest {
		t.Errorf("expected version %q, got %q", Latest, version)
	}
	if sql == "" {
		t.Error("expected non-empty SQL")
	}
	if len(sql) < 100 {
		t.Errorf("SQL seems too short: %d bytes", len(sql))
	}
}

func TestLoad_V1(t *testing.T) {
	sql, version, err := Load("1")
	if err != nil {
		t.Fatalf("Load('1') failed: %v", err)
	}
	if version != V1 {
		t.Errorf("expected version %q, got %q", V1, version)
	}

	// The long-format contract has all five tables.
	for _, table := range []string{
		"dtaforge.runs",
		"dtaforge.columns",
		"dtaforge.missing_ranges",
		"dtaforge.labels",
		"dtaforge.cells",
	} {
		if !strings.Contains(sql, table) {
			t.Errorf("schema v1 missing table %s", table)
		}
	}
}

func TestLoad_Idempotent(t *testing.T) {
	sql, _, err := Load("1")
	if err != nil {
		t.Fatalf("Load('1') failed: %v", err)
	}

	// Every CREATE must be guarded so re-applying the schema is safe.
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "CREATE ") && !strings.Contains(trimmed, "IF NOT EXISTS") {
			t.Errorf("unguarded CREATE statement: %s", trimmed)
		}
	}
}

func TestRender_DefaultSchemaUnchanged(t *testing.T) {
	sql, _, _ := Load("1")

	for _, schema := range []string{"", DefaultSchema} {
		out, err := Render(sql, schema)
		if err != nil {
			t.Fatalf("Render(%q) failed: %v", schema, err)
		}
		if out != sql {
			t.Errorf("Render(%q) altered the SQL", schema)
		}
	}
}

func TestRender_CustomSchema(t *testing.T) {
	sql, _, _ := Load("1")

	out, err := Render(sql, "survey2024")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(out, "dtaforge.") {
		t.Error("rendered SQL still references the default schema")
	}
	if !strings.Contains(out, "survey2024.runs") {
		t.Error("rendered SQL does not reference the custom schema")
	}
}

func TestRender_InvalidSchema(t *testing.T) {
	for _, schema := range []string{"Bad-Name", "1starts_with_digit", `x"; DROP TABLE y;--`} {
		if _, err := Render("CREATE SCHEMA dtaforge;", schema); err == nil {
			t.Errorf("Render(%q): expected error, got nil", schema)
		}
	}
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	_, _, err := Load("99")
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestSupportedVersions(t *testing.T) {
	versions := SupportedVersions()
	if len(versions) == 0 {
		t.Fatal("expected at least one supported version")
	}
	found := false
	for _, v := range versions {
		if v == V1 {
			found = true
		}
	}
	if !found {
		t.Error("V1 not in supported versions")
	}
}

func TestLatestVersion(t *testing.T) {
	if LatestVersion() != V1 {
		t.Errorf("expected latest version %q, got %q", V1, LatestVersion())
	}
}
