// Package postprocess applies the six post-processing operations that run
// once all producers have drained and the coverage map is frozen from
// further producer input: prefix strip, path mapping, existence check,
// glob filtering, exclusion-marker scanning, and the covered/uncovered
// filter, in that exact order.
package postprocess

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/paths"
)

// PathMapping is one configured --path-mapping FROM:TO rewrite.
type PathMapping struct {
	From string
	To   string
}

// Options configures the post-processing pass. All fields are optional;
// a zero Options runs every step as a no-op except ordering.
type Options struct {
	PrefixStrip       string
	PathMappings      []PathMapping
	SourceDir         string
	IgnoreNotExisting bool
	IgnoreGlobs       []string
	KeepOnlyGlobs     []string
	Exclusions        ExclusionRegexes
	Filter            string // "", "covered", or "uncovered"
}

// Run applies the post-processing pipeline to m in place. It returns an
// error only for configuration problems such as a bad glob; per-file I/O
// issues during existence/exclusion scanning are treated as "file does
// not exist" rather than aborting the run.
func Run(m *coverage.Map, opts Options) error {
	ignorePatterns, err := compileGlobs(opts.IgnoreGlobs)
	if err != nil {
		return fmt.Errorf("invalid --ignore glob: %w", err)
	}
	keepPatterns, err := compileGlobs(opts.KeepOnlyGlobs)
	if err != nil {
		return fmt.Errorf("invalid --keep-only glob: %w", err)
	}

	stripAndMap(m, opts)
	if opts.IgnoreNotExisting {
		filterExistence(m, opts.SourceDir)
	}
	filterGlobs(m, ignorePatterns, keepPatterns)
	if !opts.Exclusions.Empty() {
		applyExclusions(m, opts)
	}
	if opts.Filter == "covered" || opts.Filter == "uncovered" {
		filterCoverage(m, opts.Filter)
	}
	return nil
}

// step 1+2: prefix strip then path mapping, longest-prefix-wins with ties
// broken by insertion order.
func stripAndMap(m *coverage.Map, opts Options) {
	for _, key := range m.Keys() {
		newKey := key
		if opts.PrefixStrip != "" {
			newKey = paths.StripPrefix(newKey, opts.PrefixStrip)
		}
		newKey = applyMapping(newKey, opts.PathMappings)
		newKey = paths.Canonicalize(newKey)
		if newKey != key {
			m.Rename(key, newKey)
		}
	}
}

func applyMapping(key string, mappings []PathMapping) string {
	bestIdx := -1
	bestLen := -1
	for i, mp := range mappings {
		from := paths.Canonicalize(mp.From)
		if from == key || matchesPrefix(key, from) {
			if len(from) > bestLen {
				bestLen = len(from)
				bestIdx = i
			}
		}
	}
	if bestIdx < 0 {
		return key
	}
	mp := mappings[bestIdx]
	from := paths.Canonicalize(mp.From)
	if from == key {
		return mp.To
	}
	rest := key[len(from):]
	return paths.Canonicalize(mp.To) + rest
}

func matchesPrefix(key, prefix string) bool {
	if len(key) <= len(prefix) {
		return false
	}
	return key[:len(prefix)] == prefix && key[len(prefix)] == '/'
}

// step 3: existence check.
func filterExistence(m *coverage.Map, sourceDir string) {
	for _, key := range m.Keys() {
		full := key
		if sourceDir != "" && !filepath.IsAbs(key) {
			full = filepath.Join(sourceDir, key)
		}
		if !fileReadable(full) {
			m.Delete(key)
		}
	}
}

func fileReadable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// step 4: glob filtering.
func filterGlobs(m *coverage.Map, ignore, keepOnly []*globPattern) {
	for _, key := range m.Keys() {
		if matchesAny(ignore, key) {
			m.Delete(key)
			continue
		}
		if len(keepOnly) > 0 && !matchesAny(keepOnly, key) {
			m.Delete(key)
		}
	}
}

func matchesAny(patterns []*globPattern, key string) bool {
	for _, p := range patterns {
		if p.Match(key) {
			return true
		}
	}
	return false
}

func compileGlobs(patterns []string) ([]*globPattern, error) {
	out := make([]*globPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := compileGlob(p)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// step 5: exclusion-marker scan. Functions are never excluded: a function
// whose start line falls inside an excluded range is retained, only its
// line/branch entries are pruned.
func applyExclusions(m *coverage.Map, opts Options) {
	for _, key := range m.Keys() {
		rec, ok := m.Get(key)
		if !ok {
			continue
		}
		full := key
		if opts.SourceDir != "" && !filepath.IsAbs(key) {
			full = filepath.Join(opts.SourceDir, key)
		}
		if !fileReadable(full) {
			continue
		}
		ctx, err := scanExclusions(full, opts.Exclusions)
		if err != nil {
			continue
		}
		for line := range rec.Lines {
			if ctx.excludedLine[line] {
				delete(rec.Lines, line)
			}
		}
		for bkey := range rec.Branches {
			if ctx.excludedLine[bkey.Line] || ctx.excludedBranch[bkey.Line] {
				delete(rec.Branches, bkey)
			}
		}
	}
}

// step 6: covered/uncovered filter.
func filterCoverage(m *coverage.Map, filter string) {
	for _, key := range m.Keys() {
		rec, ok := m.Get(key)
		if !ok {
			continue
		}
		switch filter {
		case "covered":
			if !rec.HasExecutedLine() {
				m.Delete(key)
			}
		case "uncovered":
			if !rec.HasUncoveredLine() {
				m.Delete(key)
			}
		}
	}
}
