package upload

import (
	"fmt"
	"strings"
)

// ScalarType is the value type a column's cells are coerced to.
type ScalarType int

const (
	Text ScalarType = iota
	Integer
	Decimal
	Date
	ExactDecimal
)

// String returns the catalog name of the type
func (t ScalarType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case Date:
		return "date"
	case ExactDecimal:
		return "exact_decimal"
	default:
		return "text"
	}
}

// MarshalText renders the type by name in JSON and YAML output.
func (t ScalarType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

const (
	// DefaultActionColumn is the header of the column that selects the row action.
	DefaultActionColumn = "UPLOAD_ACTION"
	// DefaultFlagColumn is the header of the column that can exclude a row.
	DefaultFlagColumn = "UPLOAD_FLAG"
	// SkipFlag is the flag column value that excludes a row from the batch.
	SkipFlag = "N"
)

// UploadType identifies a category of bulk data.
type UploadType string

// ColumnSpec declares one catalog column. Its position is not declared;
// it is resolved from the header row of each sheet, see Layout.
type ColumnSpec struct {
	Name     string     `json:"name"`
	Type     ScalarType `json:"type"`
	Required bool       `json:"required"`
}

// ConfigDefinition is the input to NewUploadTypeConfig.
type ConfigDefinition struct {
	Type         UploadType
	Name         string
	Required     []ColumnSpec
	Optional     []ColumnSpec
	Prefilled    []ColumnSpec
	ActionColumn string
	FlagColumn   string
}

// UploadTypeConfig is the immutable column catalog of an upload type. It is
// shared read-only by every batch of that type, so nothing resolved from a
// particular sheet is ever stored on it.
type UploadTypeConfig struct {
	typ          UploadType
	name         string
	required     []ColumnSpec
	optional     []ColumnSpec
	prefilled    []ColumnSpec
	actionColumn string
	flagColumn   string
}

// NewUploadTypeConfig validates a definition and freezes it. Column names
// must be unique across the required, optional, prefilled and control columns.
func NewUploadTypeConfig(def ConfigDefinition) (*UploadTypeConfig, error) {
	if strings.TrimSpace(string(def.Type)) == "" {
		return nil, fmt.Errorf("%w: upload type is empty", ErrInvalidConfig)
	}
	if len(def.Required) == 0 {
		return nil, fmt.Errorf("%w: %s declares no required columns", ErrInvalidConfig, def.Type)
	}

	cfg := &UploadTypeConfig{
		typ:          def.Type,
		name:         def.Name,
		required:     freezeColumns(def.Required, true),
		optional:     freezeColumns(def.Optional, false),
		prefilled:    freezeColumns(def.Prefilled, false),
		actionColumn: def.ActionColumn,
		flagColumn:   def.FlagColumn,
	}
	if cfg.name == "" {
		cfg.name = string(def.Type)
	}
	if cfg.actionColumn == "" {
		cfg.actionColumn = DefaultActionColumn
	}
	if cfg.flagColumn == "" {
		cfg.flagColumn = DefaultFlagColumn
	}

	seen := make(map[string]bool)
	for _, name := range cfg.Headers() {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: %s has a column without a name", ErrInvalidConfig, def.Type)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %s declares column %s twice", ErrInvalidConfig, def.Type, name)
		}
		seen[name] = true
	}
	return cfg, nil
}

// MustUploadTypeConfig is like NewUploadTypeConfig but panics on error.
// Use it for package level catalogs declared in code.
func MustUploadTypeConfig(def ConfigDefinition) *UploadTypeConfig {
	cfg, err := NewUploadTypeConfig(def)
	if err != nil {
		panic(err)
	}
	return cfg
}

func freezeColumns(in []ColumnSpec, required bool) []ColumnSpec {
	out := make([]ColumnSpec, len(in))
	for i, c := range in {
		c.Name = strings.TrimSpace(c.Name)
		c.Required = required
		out[i] = c
	}
	return out
}

func (c *UploadTypeConfig) Type() UploadType     { return c.typ }
func (c *UploadTypeConfig) Name() string         { return c.name }
func (c *UploadTypeConfig) ActionColumn() string { return c.actionColumn }
func (c *UploadTypeConfig) FlagColumn() string   { return c.flagColumn }

// Required returns a copy of the required columns in declaration order.
func (c *UploadTypeConfig) Required() []ColumnSpec { return append([]ColumnSpec(nil), c.required...) }

// Optional returns a copy of the optional columns in declaration order.
func (c *UploadTypeConfig) Optional() []ColumnSpec { return append([]ColumnSpec(nil), c.optional...) }

// Prefilled returns a copy of the display-only columns.
func (c *UploadTypeConfig) Prefilled() []ColumnSpec {
	return append([]ColumnSpec(nil), c.prefilled...)
}

// Columns returns the data columns in iteration order: required then optional.
func (c *UploadTypeConfig) Columns() []ColumnSpec {
	out := make([]ColumnSpec, 0, len(c.required)+len(c.optional))
	out = append(out, c.required...)
	return append(out, c.optional...)
}

// Headers returns every header a template for this type carries, control
// columns first and prefilled columns last.
func (c *UploadTypeConfig) Headers() []string {
	out := []string{c.actionColumn, c.flagColumn}
	for _, col := range c.Columns() {
		out = append(out, col.Name)
	}
	for _, col := range c.prefilled {
		out = append(out, col.Name)
	}
	return out
}

// catalogNames are the header names the verifier resolves and checks for
// duplicates. Prefilled columns are display-only and ignored.
func (c *UploadTypeConfig) catalogNames() map[string]bool {
	names := map[string]bool{c.actionColumn: true, c.flagColumn: true}
	for _, col := range c.Columns() {
		names[col.Name] = true
	}
	return names
}
