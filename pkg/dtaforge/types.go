package dtaforge

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// StorageType identifies the native storage type of a column or value
// in the target statistical format.
type StorageType uint8

const (
	// StorageInvalid represents an unresolved or corrupt storage type.
	StorageInvalid StorageType = iota
	// StorageDouble stores 64-bit floating point values.
	StorageDouble
	// StorageInt32 stores 32-bit integers (used for epoch day counts).
	StorageInt32
	// StorageString stores raw text values.
	StorageString
)

// String returns a human-readable name for the storage type.
func (t StorageType) String() string {
	switch t {
	case StorageDouble:
		return "double"
	case StorageInt32:
		return "int32"
	case StorageString:
		return "string"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(t))
	}
}

// Value is a typed cell value with missingness annotations.
//
// A tagged-missing value still carries its numeric payload: the tag is
// metadata about missingness, not value erasure. System-missing values
// carry a NaN double payload regardless of the column's declared type.
type Value struct {
	// Type is the storage type of the payload.
	Type StorageType

	// F64 holds the payload when Type is StorageDouble.
	F64 float64

	// I32 holds the payload when Type is StorageInt32.
	I32 int32

	// Str holds the payload when Type is StorageString.
	Str string

	// SystemMissing marks the generic "no data" value.
	SystemMissing bool

	// TaggedMissing marks a value that matched one of the column's
	// missing ranges. Tag identifies which one ('a'..'z').
	TaggedMissing bool
	Tag           byte
}

// DoubleValue builds an ordinary double value.
func DoubleValue(v float64) Value {
	return Value{Type: StorageDouble, F64: v}
}

// Int32Value builds an ordinary int32 value.
func Int32Value(v int32) Value {
	return Value{Type: StorageInt32, I32: v}
}

// StringValue builds an ordinary string value.
func StringValue(s string) Value {
	return Value{Type: StorageString, Str: s}
}

// SystemMissingValue builds the system-missing value. The payload is a
// NaN double regardless of the column's declared type, matching the
// DTA convention for absent cells.
func SystemMissingValue() Value {
	return Value{Type: StorageDouble, F64: math.NaN(), SystemMissing: true}
}

// Tagged returns a copy of the value marked as tagged-missing with the
// given tag letter. The payload is preserved.
func (v Value) Tagged(tag byte) Value {
	v.TaggedMissing = true
	v.Tag = tag
	return v
}

// Equal reports whether two values have the same type, payload, and
// missingness annotations. NaN payloads compare equal to each other so
// system-missing values round-trip through comparisons.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.SystemMissing != o.SystemMissing ||
		v.TaggedMissing != o.TaggedMissing || v.Tag != o.Tag {
		return false
	}
	switch v.Type {
	case StorageDouble:
		if math.IsNaN(v.F64) && math.IsNaN(o.F64) {
			return true
		}
		return v.F64 == o.F64
	case StorageInt32:
		return v.I32 == o.I32
	case StorageString:
		return v.Str == o.Str
	default:
		return true
	}
}

// MissingRange is an inclusive [Lo, Hi] interval of same-typed bounds
// with a single-letter tag. Discrete missing specs use Lo == Hi.
type MissingRange struct {
	Lo  Value
	Hi  Value
	Tag byte
}

// MaxMissingRanges is the hard cap on missing ranges per column, bounded
// by the tag letter space 'a'..'z'. Exceeding it is a fatal condition,
// never a silent truncation.
const MaxMissingRanges = 26

// FirstMissingTag is the tag letter allocated to the first missing range.
const FirstMissingTag = 'a'

// Column is a resolved column descriptor. It is built once during the
// header phase and, apart from missing-range accumulation during the
// missingness phase, read-only for the remainder of the conversion.
type Column struct {
	// Name is the column's unique name within the document.
	Name string

	// Index is the zero-based column position.
	Index int

	// Type is the resolved native storage type.
	Type StorageType

	// Format is the resolved display format (e.g. "%9.2f", "%td", "%tC").
	// Empty for string columns.
	Format string

	// IsDate marks columns storing epoch day counts. Mutually exclusive
	// with IsDateTime; both are decided before any cell is encoded.
	IsDate bool

	// IsDateTime marks columns storing millisecond timestamps.
	IsDateTime bool

	missing []MissingRange
}

// AddMissingRange appends an inclusive [lo, hi] range, allocating the
// next tag letter. It returns ErrTagSpaceExhausted once all 26 tags are
// in use, and ErrTypeMismatch if the bounds are not homogeneous with
// each other.
func (c *Column) AddMissingRange(lo, hi Value) (byte, error) {
	if lo.Type != hi.Type {
		return 0, fmt.Errorf("column %q: range bounds %s/%s differ: %w",
			c.Name, lo.Type, hi.Type, ErrTypeMismatch)
	}
	if len(c.missing) >= MaxMissingRanges {
		return 0, fmt.Errorf("column %q: missing tag space exhausted after %q: %w",
			c.Name, byte('z'), ErrTagSpaceExhausted)
	}
	tag := byte(FirstMissingTag + len(c.missing))
	c.missing = append(c.missing, MissingRange{Lo: lo.Tagged(tag), Hi: hi.Tagged(tag), Tag: tag})
	return tag, nil
}

// MissingRanges returns the column's compiled missing ranges in tag order.
// The returned slice must not be modified.
func (c *Column) MissingRanges() []MissingRange {
	return c.missing
}

// Label is a value label emitted for a declared category: a typed code,
// its display text, and - when the code falls inside one of the owning
// column's missing ranges - the implied missing tag carried on Code.
type Label struct {
	Column string
	Code   Value
	Text   string
}

// DatasetInfo describes one conversion run. It is handed to sinks before
// any column or value is written.
type DatasetInfo struct {
	// RunID uniquely identifies this conversion run.
	RunID string

	// MetadataPath and DataPath are the resolved input file paths.
	MetadataPath string
	DataPath     string

	// MetadataChecksum and DataChecksum are SHA-256 hex digests of the
	// raw input bytes.
	MetadataChecksum string
	DataChecksum     string

	// MetadataChecksumNormalized and DataChecksumNormalized are SHA-256
	// hex digests of the inputs with the UTF-8 BOM stripped and line
	// endings rewritten to LF, so runs of the same content match across
	// platforms.
	MetadataChecksumNormalized string
	DataChecksumNormalized     string

	// Columns is the number of columns in the dataset.
	Columns int

	// Attributes are free-form dataset attributes supplied by the caller
	// (CLI --attr flags, .env files, dtaforge.yaml).
	Attributes map[string]string
}

// ConversionConfig contains all parameters needed for a conversion run.
type ConversionConfig struct {
	// SourcePath is the project directory containing the metadata
	// document and the CSV data file.
	SourcePath string

	// MetadataFile is the metadata document path relative to SourcePath.
	// Defaults to DefaultMetadataFile when empty.
	MetadataFile string

	// DataFile is the CSV file path relative to SourcePath.
	// Defaults to DefaultDataFile when empty.
	DataFile string

	// Sink selects the output sink ("jsonl" or "postgres").
	Sink string

	// OutputPath is the output file for file-based sinks. Empty means
	// stdout.
	OutputPath string

	// TablePrefix is the table name prefix for the postgres sink.
	TablePrefix string

	// ConnectionString is the PostgreSQL connection string for the
	// postgres sink (URI or key/value format).
	ConnectionString string

	// Overwrite enables the destructive drop/recreate workflow for
	// existing sink tables.
	Overwrite bool

	// Force bypasses interactive approval when used with Overwrite.
	Force bool

	// Attributes are dataset attributes forwarded to the sink.
	Attributes map[string]string

	// MetadataOnly compiles and emits column descriptors, missing
	// ranges, and labels but skips row encoding. Used by inspection.
	MetadataOnly bool

	// Timeout is the global timeout for the entire conversion.
	Timeout time.Duration

	// Verbose enables detailed logging.
	Verbose bool

	// AuthMethod indicates the authentication mechanism for the
	// postgres sink.
	AuthMethod AuthMethod

	// Azure Entra ID authentication parameters (used when AuthMethod is
	// AuthMethodAzureEntraID).
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// AWSRegion is the RDS region for AWS IAM token authentication.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance
	// (project:region:instance) for Google IAM authentication.
	GoogleInstance string
}

// Validate checks if the ConversionConfig has all required fields and
// valid values. It returns a multi-error if multiple validation failures
// occur.
func (c *ConversionConfig) Validate() error {
	var errs []error

	if c.SourcePath == "" {
		errs = append(errs, fmt.Errorf("SourcePath is required: %w", ErrInvalidConfig))
	}

	switch c.Sink {
	case "", SinkJSONL:
	case SinkPostgres:
		if c.ConnectionString == "" {
			errs = append(errs, fmt.Errorf("ConnectionString is required for the postgres sink: %w", ErrInvalidConfig))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sink %q: %w", c.Sink, ErrInvalidConfig))
	}

	// Force requires Overwrite to be set
	if c.Force && !c.Overwrite {
		errs = append(errs, fmt.Errorf("force flag requires overwrite to be enabled: %w", ErrInvalidConfig))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// ConnectionConfig represents parsed connection parameters for the
// postgres sink.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use.
	AuthMethod AuthMethod

	// Additional connection parameters.
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// AWS IAM authentication parameters.
	AWSRegion string

	// Google Cloud SQL instance in project:region:instance form.
	GoogleInstance string

	// Azure Entra ID authentication parameters. If all three are
	// provided, Service Principal authentication is used. If none are
	// provided, the DefaultAzureCredential chain is used (env vars,
	// managed identity, CLI, etc.).
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard    AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                        // AWS IAM Database Authentication
	AuthMethodGoogleIAM                     // Google Cloud SQL IAM
	AuthMethodAzureEntraID                  // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}
