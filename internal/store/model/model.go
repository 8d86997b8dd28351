// Package model defines the GORM-backed rows staged by the indexing
// pipeline: symbols, references, and the configuration-mediated edges
// the metadata pass discovers.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// ExternalFilePath is the sentinel file_path for symbols that could not be
// located in the repository (external placeholders) and for every
// synthetic api_endpoint symbol the linker creates.
const ExternalFilePath = "<external>"

// Symbol kinds, closed set per spec §3.
const (
	KindNamespace          = "namespace"
	KindModule             = "module"
	KindClass              = "class"
	KindInterface          = "interface"
	KindTrait              = "trait"
	KindEnum               = "enum"
	KindFunction           = "function"
	KindMethod             = "method"
	KindProperty           = "property"
	KindConstant           = "constant"
	KindField              = "field"
	KindParameter          = "parameter"
	KindFile               = "file"
	KindDirectory          = "directory"
	KindConfigFile         = "config_file"
	KindExternalPlaceholder = "external_placeholder"
	KindAPIEndpoint        = "api_endpoint"
)

// Modifiers, closed set per spec §3.
const (
	ModAbstract  = "abstract"
	ModFinal     = "final"
	ModStatic    = "static"
	ModReadonly  = "readonly"
	ModAsync     = "async"
	ModGenerator = "generator"
	ModPublic    = "public"
	ModProtected = "protected"
	ModPrivate   = "private"
)

// Reference kinds, closed set per spec §3.
const (
	RefContains         = "contains"
	RefDefines          = "defines"
	RefExtends          = "extends"
	RefImplements       = "implements"
	RefUsesTrait        = "uses_trait"
	RefImports          = "imports"
	RefCalls            = "calls"
	RefCallsStatic      = "calls_static"
	RefInstantiates     = "instantiates"
	RefAccessesRead     = "accesses_read"
	RefAccessesWrite    = "accesses_write"
	RefParameterType    = "parameter_type"
	RefReturnsType      = "returns_type"
	RefThrows           = "throws"
	RefOverrides        = "overrides"
	RefImplementsMethod = "implements_method"
	RefInstanceof       = "instanceof"
	RefRegisteredIn     = "registered_in"
	RefLoadsViaConfig   = "loads_via_config"
	RefAPICalls         = "api_calls"
)

// Span is a (line, column) start position, 1-based.
type Span struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Parameter is one entry of a callable's structured signature.
type Parameter struct {
	Name            string `json:"name"`
	DeclaredType    string `json:"declared_type,omitempty"`
	HasDefault      bool   `json:"has_default"`
	ByReference     bool   `json:"by_reference"`
	Variadic        bool   `json:"variadic"`
}

// DocEntry is one @param/@return/@throws line of a parsed docblock.
type DocEntry struct {
	Tag  string `json:"tag"`
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
	Text string `json:"text,omitempty"`
}

// Symbol is a named declaration recorded by the pipeline (spec §3).
type Symbol struct {
	ID             string `gorm:"primaryKey;type:varchar(32)"`
	Kind           string `gorm:"type:varchar(32);not null;uniqueIndex:idx_symbol_uniq,priority:3;index:idx_symbol_lookup,priority:2"`
	Name           string `gorm:"type:varchar(255);not null;index"`
	QualifiedName  string `gorm:"type:text;not null;uniqueIndex:idx_symbol_uniq,priority:2;index:idx_symbol_lookup,priority:1;index:idx_symbol_lang_qn,priority:2"`
	Language       string `gorm:"type:varchar(32);not null;uniqueIndex:idx_symbol_uniq,priority:1;index:idx_symbol_lang_qn,priority:1"`
	FilePath       string `gorm:"type:text;not null;uniqueIndex:idx_symbol_uniq,priority:4;index"`
	Line           int    `gorm:"not null"`
	Column         int    `gorm:"not null"`
	ParentID       string `gorm:"type:varchar(32);index"`

	Modifiers     datatypes.JSONSlice[string]  `gorm:"type:jsonb"`
	Signature     datatypes.JSONSlice[Parameter] `gorm:"type:jsonb"`
	DeclaredTypes datatypes.JSONSlice[string]  `gorm:"type:jsonb"`
	Docblock      datatypes.JSONSlice[DocEntry] `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Symbol) TableName() string { return "symbols" }

// Reference is a directed, typed edge between two symbols (spec §3).
type Reference struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SourceID   string `gorm:"type:varchar(32);not null;uniqueIndex:idx_ref_uniq,priority:1;index"`
	TargetID   string `gorm:"type:varchar(32);uniqueIndex:idx_ref_uniq,priority:2;index"`
	TargetRaw  string `gorm:"type:text"`
	Kind       string `gorm:"type:varchar(32);not null;uniqueIndex:idx_ref_uniq,priority:3;index"`
	Line       int    `gorm:"not null;uniqueIndex:idx_ref_uniq,priority:4"`
	Column     int    `gorm:"not null;uniqueIndex:idx_ref_uniq,priority:5"`
	Context    string `gorm:"type:varchar(32)"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Reference) TableName() string { return "references" }

// ConfigReference records a class-name mention found by the metadata
// pass at a recognized declarative-config key (spec §4.6, §6).
type ConfigReference struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	ConfigFile       string `gorm:"type:text;not null;uniqueIndex:idx_config_ref_uniq,priority:1;index"`
	ConfigKey        string `gorm:"type:varchar(255);not null;uniqueIndex:idx_config_ref_uniq,priority:2"`
	ClassName        string `gorm:"type:text;not null;uniqueIndex:idx_config_ref_uniq,priority:3;index"`
	RegistrationKind string `gorm:"type:varchar(64);not null;uniqueIndex:idx_config_ref_uniq,priority:4"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ConfigReference) TableName() string { return "config_references" }

// RunStats persists the per-phase counters of a completed run so that
// `codegraph materialize` can report on a cache built by a separate
// `codegraph index` invocation.
type RunStats struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Phase     string    `gorm:"type:varchar(64);not null;index"`
	Counter   string    `gorm:"type:varchar(64);not null"`
	Value     int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (RunStats) TableName() string { return "run_stats" }
