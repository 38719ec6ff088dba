package postprocess

import (
	"bufio"
	"os"
	"regexp"
)

// ExclusionRegexes holds the six configured --excl-* marker patterns. A
// nil field disables that marker.
type ExclusionRegexes struct {
	Line        *regexp.Regexp
	Start       *regexp.Regexp
	Stop        *regexp.Regexp
	BranchLine  *regexp.Regexp
	BranchStart *regexp.Regexp
	BranchStop  *regexp.Regexp
}

// Empty reports whether no exclusion marker is configured, letting callers
// skip reading source files entirely.
func (r ExclusionRegexes) Empty() bool {
	return r.Line == nil && r.Start == nil && r.Stop == nil &&
		r.BranchLine == nil && r.BranchStart == nil && r.BranchStop == nil
}

// exclusionContext maps a line number to whether that line's counts, or
// just its branches, are excluded. Each source file is scanned at most
// once.
type exclusionContext struct {
	excludedLine   map[int]bool
	excludedBranch map[int]bool
}

func scanExclusions(sourcePath string, rx ExclusionRegexes) (*exclusionContext, error) {
	f, err := os.Open(sourcePath) // #nosec G304 - path resolved by the post-processor's own existence check
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx := &exclusionContext{excludedLine: map[int]bool{}, excludedBranch: map[int]bool{}}

	lineOpen := rx.Start != nil
	branchOpen := rx.BranchStart != nil
	lineRangeActive := false
	branchRangeActive := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()

		if lineOpen && !lineRangeActive && rx.Start.MatchString(text) {
			lineRangeActive = true
		}
		if lineRangeActive {
			ctx.excludedLine[lineNo] = true
		}
		if lineRangeActive && rx.Stop != nil && rx.Stop.MatchString(text) {
			lineRangeActive = false
		}

		if branchOpen && !branchRangeActive && rx.BranchStart.MatchString(text) {
			branchRangeActive = true
		}
		if branchRangeActive {
			ctx.excludedBranch[lineNo] = true
		}
		if branchRangeActive && rx.BranchStop != nil && rx.BranchStop.MatchString(text) {
			branchRangeActive = false
		}

		if rx.Line != nil && rx.Line.MatchString(text) {
			ctx.excludedLine[lineNo] = true
		}
		if rx.BranchLine != nil && rx.BranchLine.MatchString(text) {
			ctx.excludedBranch[lineNo] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return ctx, err
	}
	return ctx, nil
}
