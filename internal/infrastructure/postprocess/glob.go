package postprocess

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/felixgeelhaar/grcov/internal/infrastructure/paths"
)

// globPattern wraps a configured --ignore/--keep-only glob pattern,
// matched against an already-canonicalized coverage-map key. "**" crosses
// path components, "*"/"?" stay within one. Matching is a pure
// string-against-pattern operation: map keys need not resolve to a file
// on this machine (--ignore-not-existing decides that separately), so a
// filesystem-walking glob would be wrong here. On platforms whose
// filesystems are case-insensitive, pattern and key are case-folded
// before matching so a glob written with the on-disk casing still hits.
type globPattern struct {
	pattern string
}

func compileGlob(pattern string) (*globPattern, error) {
	pattern = paths.CaseFold(pattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("compile glob %q: invalid pattern", pattern)
	}
	return &globPattern{pattern: pattern}, nil
}

func (g *globPattern) Match(key string) bool {
	matched, err := doublestar.Match(g.pattern, paths.CaseFold(key))
	if err != nil {
		return false
	}
	return matched
}
