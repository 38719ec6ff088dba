// Package application holds the grcov service's configuration and result
// types — the validated, ready-to-run shape that internal/infrastructure/
// config builds from a .grcov.yaml file and the CLI flags override.
package application

import "errors"

// ErrConfigNotFound reports that no .grcov.yaml was found when one was
// expected.
var ErrConfigNotFound = errors.New("config not found")

// PathMapping is one configured --path-mapping FROM:TO rewrite.
type PathMapping struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// ExclusionConfig carries the six --excl-* regex patterns as configured
// strings; Service.Run compiles them once per run into
// postprocess.ExclusionRegexes, which the post-processor shares read-only.
type ExclusionConfig struct {
	Line        string `yaml:"excl_line,omitempty"`
	Start       string `yaml:"excl_start,omitempty"`
	Stop        string `yaml:"excl_stop,omitempty"`
	BranchLine  string `yaml:"excl_br_line,omitempty"`
	BranchStart string `yaml:"excl_br_start,omitempty"`
	BranchStop  string `yaml:"excl_br_stop,omitempty"`
}

// Config is the fully resolved configuration for one grcov run: the
// merge of a loaded .grcov.yaml and any CLI flag overrides, with flags
// taking precedence.
type Config struct {
	Version int `yaml:"version"`

	// Extends points at a parent config to inherit from, resolved
	// relative to this config file's directory.
	Extends string `yaml:"extends,omitempty"`

	// Roots are the positional input paths: directories, archives, or
	// individual artifact files.
	Roots []string `yaml:"roots,omitempty"`

	BinaryPath string `yaml:"binary_path,omitempty"`
	SourceDir  string `yaml:"source_dir,omitempty"`
	PrefixDir  string `yaml:"prefix_dir,omitempty"`

	IgnoreNotExisting bool     `yaml:"ignore_not_existing,omitempty"`
	Ignore            []string `yaml:"ignore,omitempty"`
	KeepOnly          []string `yaml:"keep_only,omitempty"`

	PathMappings []PathMapping `yaml:"path_mapping,omitempty"`

	Branch bool   `yaml:"branch,omitempty"`
	Filter string `yaml:"filter,omitempty"` // "", "covered", "uncovered"

	LLVM     bool   `yaml:"llvm,omitempty"`
	GcovPath string `yaml:"gcov_path,omitempty"`

	Exclusions ExclusionConfig `yaml:"exclusions,omitempty"`

	OutputTypes []string `yaml:"output_types,omitempty"`
	OutputPath  string   `yaml:"output_path,omitempty"`
	Precision   int      `yaml:"precision,omitempty"`

	Threads int `yaml:"threads,omitempty"`

	Log      string `yaml:"log,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`

	// Watch enables the fsnotify-backed rerun-on-change dev mode.
	Watch bool `yaml:"watch,omitempty"`

	// Badge additionally writes an SVG coverage badge to this path when set.
	Badge string `yaml:"badge,omitempty"`
}

// Result summarizes one completed run for the CLI's exit-code decision
// and for logging. It is returned alongside (not instead of) an error.
type Result struct {
	FilesReported int
	Warnings      []string
}
