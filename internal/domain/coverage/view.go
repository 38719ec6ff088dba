package coverage

import "sort"

// LineView is one (line, count) pair in emitted order.
type LineView struct {
	Line  int
	Count uint64
}

// BranchView is one emitted branch, carrying its key for stable ordering.
type BranchView struct {
	Line     int
	Index    int
	Taken    bool
	Executed bool
}

// FunctionView is one emitted function, sorted by name.
type FunctionView struct {
	Name      string
	StartLine int
	Executed  bool
}

// Summary holds the raw totals the Emitter hands to writers; writers
// compute percentages at render time.
type Summary struct {
	CoveredLines     int
	TotalLines       int
	CoveredBranches  int
	TotalBranches    int
	CoveredFunctions int
	TotalFunctions   int
}

// FileView is the neutral, writer-agnostic projection of one file's
// coverage record, in the stable order the Emitter guarantees.
type FileView struct {
	Path      string
	Lines     []LineView
	Branches  []BranchView
	Functions []FunctionView
	Summary   Summary
}

// NewFileView projects a Record into a FileView with everything sorted.
func NewFileView(path string, rec *Record) FileView {
	view := FileView{Path: path}

	view.Lines = make([]LineView, 0, len(rec.Lines))
	for line, count := range rec.Lines {
		view.Lines = append(view.Lines, LineView{Line: line, Count: count})
	}
	sort.Slice(view.Lines, func(i, j int) bool { return view.Lines[i].Line < view.Lines[j].Line })

	view.Branches = make([]BranchView, 0, len(rec.Branches))
	for key, b := range rec.Branches {
		view.Branches = append(view.Branches, BranchView{
			Line: key.Line, Index: key.Index, Taken: b.Taken, Executed: b.Executed,
		})
	}
	sort.Slice(view.Branches, func(i, j int) bool {
		if view.Branches[i].Line != view.Branches[j].Line {
			return view.Branches[i].Line < view.Branches[j].Line
		}
		return view.Branches[i].Index < view.Branches[j].Index
	})

	view.Functions = make([]FunctionView, 0, len(rec.Functions))
	for name, fn := range rec.Functions {
		view.Functions = append(view.Functions, FunctionView{Name: name, StartLine: fn.StartLine, Executed: fn.Executed})
	}
	sort.Slice(view.Functions, func(i, j int) bool { return view.Functions[i].Name < view.Functions[j].Name })

	for _, l := range view.Lines {
		view.Summary.TotalLines++
		if l.Count > 0 {
			view.Summary.CoveredLines++
		}
	}
	for _, b := range view.Branches {
		view.Summary.TotalBranches++
		if b.Taken {
			view.Summary.CoveredBranches++
		}
	}
	for _, f := range view.Functions {
		view.Summary.TotalFunctions++
		if f.Executed {
			view.Summary.CoveredFunctions++
		}
	}

	return view
}

// Add accumulates another summary's totals into this one — used to build
// the grand-total summary across all files.
func (s *Summary) Add(other Summary) {
	s.CoveredLines += other.CoveredLines
	s.TotalLines += other.TotalLines
	s.CoveredBranches += other.CoveredBranches
	s.TotalBranches += other.TotalBranches
	s.CoveredFunctions += other.CoveredFunctions
	s.TotalFunctions += other.TotalFunctions
}

// LinePercent returns covered/total line percentage, 0 if no lines.
func (s Summary) LinePercent() float64 {
	if s.TotalLines == 0 {
		return 0
	}
	return float64(s.CoveredLines) / float64(s.TotalLines) * 100
}

// BranchPercent returns covered/total branch percentage, 0 if no branches.
func (s Summary) BranchPercent() float64 {
	if s.TotalBranches == 0 {
		return 0
	}
	return float64(s.CoveredBranches) / float64(s.TotalBranches) * 100
}

// FunctionPercent returns covered/total function percentage, 0 if none.
func (s Summary) FunctionPercent() float64 {
	if s.TotalFunctions == 0 {
		return 0
	}
	return float64(s.CoveredFunctions) / float64(s.TotalFunctions) * 100
}

// HasExecutedLine reports whether any line in the record was executed.
func (r *Record) HasExecutedLine() bool {
	for _, count := range r.Lines {
		if count > 0 {
			return true
		}
	}
	return false
}

// HasUncoveredLine reports whether any executable line in the record was
// not executed.
func (r *Record) HasUncoveredLine() bool {
	for _, count := range r.Lines {
		if count == 0 {
			return true
		}
	}
	return false
}
