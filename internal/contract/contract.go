// Package contract defines the relational schema converted datasets are
// written into. The schema is embedded and versioned so a database can be
// prepared without shipping SQL files alongside the binary.
package contract

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

//go:embed schema-v1.sql
var schemaV1SQL string

// DefaultSchema is the PostgreSQL schema the embedded SQL targets.
const DefaultSchema = "dtaforge"

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdent reports whether name is usable as an unquoted PostgreSQL
// identifier. The sink validates configured schema names with this
// before any SQL is rendered.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// Render rewrites SQL to target the given schema instead of
// DefaultSchema. An empty schema leaves the SQL unchanged.
func Render(sql, schema string) (string, error) {
	if schema == "" || schema == DefaultSchema {
		return sql, nil
	}
	if !ValidIdent(schema) {
		return "", fmt.Errorf("invalid schema name %q: %w", schema, dtaforge.ErrInvalidConfig)
	}
	return strings.ReplaceAll(sql, DefaultSchema, schema), nil
}

// Version represents a schema version identifier.
type Version string

const (
	V1     Version = "1"
	Latest Version = V1
)

var supportedVersions = map[Version]string{
	V1: "schema-v1.sql",
}

// Load returns the SQL content for the specified schema version.
// If version is empty, the latest version is used.
// Returns the SQL content, the resolved version, and any error.
func Load(version string) (string, Version, error) {
	v := Version(version)
	if v == "" {
		v = Latest
	}

	switch v {
	case V1:
		return schemaV1SQL, v, nil
	default:
		return "", "", fmt.Errorf("unsupported schema version %q; supported: %v", version, SupportedVersions())
	}
}

// Apply executes the schema SQL for the specified version against the
// given schema name. The statements are idempotent, so applying to an
// already-prepared database is safe.
func Apply(ctx context.Context, conn dtaforge.DBConnection, version, schema string) (Version, error) {
	sql, v, err := Load(version)
	if err != nil {
		return "", err
	}
	sql, err = Render(sql, schema)
	if err != nil {
		return "", err
	}

	if _, err := conn.Exec(ctx, sql); err != nil {
		return "", fmt.Errorf("failed to apply schema v%s: %w", v, err)
	}

	return v, nil
}

// SupportedVersions returns a sorted list of all supported schema versions.
func SupportedVersions() []Version {
	versions := make([]Version, 0, len(supportedVersions))
	for v := range supportedVersions {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions
}

// LatestVersion returns the current latest schema version.
func LatestVersion() Version {
	return Latest
}
