// Package config loads .grcov.yaml configuration files into an
// application.Config. A config file is discovered by walking up from the
// working directory, and may inherit from a parent file via extends:.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/grcov/internal/application"
	"github.com/felixgeelhaar/grcov/internal/pathutil"
)

// Loader reads .grcov.yaml files from disk.
type Loader struct{}

type fileConfig struct {
	Version int    `yaml:"version"`
	Extends string `yaml:"extends,omitempty"`

	Roots []string `yaml:"roots,omitempty"`

	BinaryPath string `yaml:"binary_path,omitempty"`
	SourceDir  string `yaml:"source_dir,omitempty"`
	PrefixDir  string `yaml:"prefix_dir,omitempty"`

	IgnoreNotExisting bool     `yaml:"ignore_not_existing,omitempty"`
	Ignore            []string `yaml:"ignore,omitempty"`
	KeepOnly          []string `yaml:"keep_only,omitempty"`

	PathMappings []filePathMapping `yaml:"path_mapping,omitempty"`

	Branch bool   `yaml:"branch,omitempty"`
	Filter string `yaml:"filter,omitempty"`

	LLVM     bool   `yaml:"llvm,omitempty"`
	GcovPath string `yaml:"gcov_path,omitempty"`

	Exclusions fileExclusions `yaml:"exclusions,omitempty"`

	OutputTypes []string `yaml:"output_types,omitempty"`
	OutputPath  string   `yaml:"output_path,omitempty"`
	Precision   int      `yaml:"precision,omitempty"`

	Threads int `yaml:"threads,omitempty"`

	Log      string `yaml:"log,omitempty"`
	LogLevel string `yaml:"log_level,omitempty"`

	Watch bool   `yaml:"watch,omitempty"`
	Badge string `yaml:"badge,omitempty"`
}

type filePathMapping struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type fileExclusions struct {
	Line        string `yaml:"excl_line,omitempty"`
	Start       string `yaml:"excl_start,omitempty"`
	Stop        string `yaml:"excl_stop,omitempty"`
	BranchLine  string `yaml:"excl_br_line,omitempty"`
	BranchStart string `yaml:"excl_br_start,omitempty"`
	BranchStop  string `yaml:"excl_br_stop,omitempty"`
}

// Exists reports whether a file exists at path.
func (l Loader) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// FindConfig searches for a .grcov.yaml starting from the working
// directory and walking up to parent directories.
func (l Loader) FindConfig() (string, error) {
	return FindConfigFrom("")
}

// FindConfigFrom searches for a .grcov.yaml starting from startDir (or
// the working directory if empty), walking up to parent directories.
func FindConfigFrom(startDir string) (string, error) {
	dir := startDir
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configNames := []string{".grcov.yaml", ".grcov.yml", "grcov.yaml", "grcov.yml"}

	for {
		for _, name := range configNames {
			configPath := filepath.Join(dir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no .grcov.yaml in current or parent directories", application.ErrConfigNotFound)
		}
		dir = parent
	}
}

// Load reads and resolves the config at path, following any extends chain.
func (l Loader) Load(path string) (application.Config, error) {
	return l.loadWithCycleCheck(path, make(map[string]struct{}))
}

func (l Loader) loadWithCycleCheck(path string, visited map[string]struct{}) (application.Config, error) {
	cleanPath, err := pathutil.ValidatePath(path)
	if err != nil {
		return application.Config{}, fmt.Errorf("invalid path: %w", err)
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return application.Config{}, fmt.Errorf("resolving path: %w", err)
	}

	if _, ok := visited[absPath]; ok {
		return application.Config{}, fmt.Errorf("circular config inheritance detected: %s", absPath)
	}
	visited[absPath] = struct{}{}

	raw, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return application.Config{}, err
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return application.Config{}, err
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if cfg.Version != 1 {
		return application.Config{}, fmt.Errorf("unsupported config version: %d", cfg.Version)
	}

	var parentCfg application.Config
	if cfg.Extends != "" {
		configDir := filepath.Dir(absPath)
		parentPath := cfg.Extends
		if !filepath.IsAbs(parentPath) {
			parentPath = filepath.Join(configDir, parentPath)
		}

		parentCfg, err = l.loadWithCycleCheck(parentPath, visited)
		if err != nil {
			return application.Config{}, fmt.Errorf("loading parent config %s: %w", cfg.Extends, err)
		}
	}

	childCfg := buildAppConfig(cfg)

	if cfg.Extends != "" {
		return mergeConfigs(parentCfg, childCfg), nil
	}
	return childCfg, nil
}

func buildAppConfig(cfg fileConfig) application.Config {
	mappings := make([]application.PathMapping, 0, len(cfg.PathMappings))
	for _, m := range cfg.PathMappings {
		mappings = append(mappings, application.PathMapping{From: m.From, To: m.To})
	}

	return application.Config{
		Version:           cfg.Version,
		Extends:           cfg.Extends,
		Roots:             append([]string(nil), cfg.Roots...),
		BinaryPath:        cfg.BinaryPath,
		SourceDir:         cfg.SourceDir,
		PrefixDir:         cfg.PrefixDir,
		IgnoreNotExisting: cfg.IgnoreNotExisting,
		Ignore:            append([]string(nil), cfg.Ignore...),
		KeepOnly:          append([]string(nil), cfg.KeepOnly...),
		PathMappings:      mappings,
		Branch:            cfg.Branch,
		Filter:            cfg.Filter,
		LLVM:              cfg.LLVM,
		GcovPath:          cfg.GcovPath,
		Exclusions: application.ExclusionConfig{
			Line:        cfg.Exclusions.Line,
			Start:       cfg.Exclusions.Start,
			Stop:        cfg.Exclusions.Stop,
			BranchLine:  cfg.Exclusions.BranchLine,
			BranchStart: cfg.Exclusions.BranchStart,
			BranchStop:  cfg.Exclusions.BranchStop,
		},
		OutputTypes: append([]string(nil), cfg.OutputTypes...),
		OutputPath:  cfg.OutputPath,
		Precision:   cfg.Precision,
		Threads:     cfg.Threads,
		Log:         cfg.Log,
		LogLevel:    cfg.LogLevel,
		Watch:       cfg.Watch,
		Badge:       cfg.Badge,
	}
}

// mergeConfigs merges child onto parent: child values override parent
// values field by field, and slice fields that are additive in nature
// (Roots, Ignore, KeepOnly, PathMappings) append rather than replace.
func mergeConfigs(parent, child application.Config) application.Config {
	result := parent

	if child.Version != 0 {
		result.Version = child.Version
	}
	if len(child.Roots) > 0 {
		result.Roots = append(append([]string(nil), result.Roots...), child.Roots...)
	}
	if child.BinaryPath != "" {
		result.BinaryPath = child.BinaryPath
	}
	if child.SourceDir != "" {
		result.SourceDir = child.SourceDir
	}
	if child.PrefixDir != "" {
		result.PrefixDir = child.PrefixDir
	}
	if child.IgnoreNotExisting {
		result.IgnoreNotExisting = true
	}
	if len(child.Ignore) > 0 {
		result.Ignore = append(append([]string(nil), result.Ignore...), child.Ignore...)
	}
	if len(child.KeepOnly) > 0 {
		result.KeepOnly = append(append([]string(nil), result.KeepOnly...), child.KeepOnly...)
	}
	if len(child.PathMappings) > 0 {
		result.PathMappings = append(append([]application.PathMapping(nil), result.PathMappings...), child.PathMappings...)
	}
	if child.Branch {
		result.Branch = true
	}
	if child.Filter != "" {
		result.Filter = child.Filter
	}
	if child.LLVM {
		result.LLVM = true
	}
	if child.GcovPath != "" {
		result.GcovPath = child.GcovPath
	}
	if child.Exclusions != (application.ExclusionConfig{}) {
		result.Exclusions = child.Exclusions
	}
	if len(child.OutputTypes) > 0 {
		result.OutputTypes = child.OutputTypes
	}
	if child.OutputPath != "" {
		result.OutputPath = child.OutputPath
	}
	if child.Precision != 0 {
		result.Precision = child.Precision
	}
	if child.Threads != 0 {
		result.Threads = child.Threads
	}
	if child.Log != "" {
		result.Log = child.Log
	}
	if child.LogLevel != "" {
		result.LogLevel = child.LogLevel
	}
	if child.Watch {
		result.Watch = true
	}
	if child.Badge != "" {
		result.Badge = child.Badge
	}

	return result
}

// Write serializes cfg back out as a .grcov.yaml document.
func Write(w io.Writer, cfg application.Config) error {
	version := cfg.Version
	if version == 0 {
		version = 1
	}
	out := fileConfig{
		Version:           version,
		Extends:           cfg.Extends,
		Roots:             cfg.Roots,
		BinaryPath:        cfg.BinaryPath,
		SourceDir:         cfg.SourceDir,
		PrefixDir:         cfg.PrefixDir,
		IgnoreNotExisting: cfg.IgnoreNotExisting,
		Ignore:            cfg.Ignore,
		KeepOnly:          cfg.KeepOnly,
		Branch:            cfg.Branch,
		Filter:            cfg.Filter,
		LLVM:              cfg.LLVM,
		GcovPath:          cfg.GcovPath,
		Exclusions: fileExclusions{
			Line:        cfg.Exclusions.Line,
			Start:       cfg.Exclusions.Start,
			Stop:        cfg.Exclusions.Stop,
			BranchLine:  cfg.Exclusions.BranchLine,
			BranchStart: cfg.Exclusions.BranchStart,
			BranchStop:  cfg.Exclusions.BranchStop,
		},
		OutputTypes: cfg.OutputTypes,
		OutputPath:  cfg.OutputPath,
		Precision:   cfg.Precision,
		Threads:     cfg.Threads,
		Log:         cfg.Log,
		LogLevel:    cfg.LogLevel,
		Watch:       cfg.Watch,
		Badge:       cfg.Badge,
	}
	for _, m := range cfg.PathMappings {
		out.PathMappings = append(out.PathMappings, filePathMapping{From: m.From, To: m.To})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return enc.Encode(out)
}
