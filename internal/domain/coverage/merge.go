package coverage

// Merge combines b into a and returns a new record, leaving a and b
// untouched. Merge is commutative and associative by construction: lines
// sum (saturating), branches OR taken/executed per (line, index) — with
// the longer branch list on a line winning when producers disagreed on
// branch cardinality — and functions union by name with {min start_line,
// OR executed}.
func Merge(a, b *Record) *Record {
	out := NewRecord(pickSourcePath(a, b))

	for line, count := range a.Lines {
		out.Lines[line] = count
	}
	for line, count := range b.Lines {
		out.Lines[line] = saturatingAdd(out.Lines[line], count)
	}

	mergeBranches(out, a, b)

	for name, fn := range a.Functions {
		out.AddFunction(name, fn.StartLine, fn.Executed)
	}
	for name, fn := range b.Functions {
		out.AddFunction(name, fn.StartLine, fn.Executed)
	}

	// Branches whose line has no line entry become executable with count 0.
	for key := range out.Branches {
		if _, ok := out.Lines[key.Line]; !ok {
			out.Lines[key.Line] = 0
		}
	}

	return out
}

func pickSourcePath(a, b *Record) string {
	if a.SourcePath != "" {
		return a.SourcePath
	}
	return b.SourcePath
}

// mergeBranches groups each side's branches by line; whichever side
// recorded more branch indices on a line supplies the full index set for
// that line, with missing entries defaulting to {false, false}.
func mergeBranches(out, a, b *Record) {
	aByLine := branchesByLine(a)
	bByLine := branchesByLine(b)

	lines := make(map[int]struct{})
	for line := range aByLine {
		lines[line] = struct{}{}
	}
	for line := range bByLine {
		lines[line] = struct{}{}
	}

	for line := range lines {
		aBranches := aByLine[line]
		bBranches := bByLine[line]
		width := 0
		for idx := range aBranches {
			if idx >= width {
				width = idx + 1
			}
		}
		for idx := range bBranches {
			if idx >= width {
				width = idx + 1
			}
		}
		for idx := 0; idx < width; idx++ {
			av, aok := aBranches[idx]
			bv, bok := bBranches[idx]
			if !aok && !bok {
				continue
			}
			merged := Branch{
				Taken:    av.Taken || bv.Taken,
				Executed: av.Executed || bv.Executed,
			}
			out.AddBranch(line, idx, merged)
		}
	}
}

func branchesByLine(r *Record) map[int]map[int]Branch {
	result := make(map[int]map[int]Branch)
	for key, branch := range r.Branches {
		byIdx, ok := result[key.Line]
		if !ok {
			byIdx = make(map[int]Branch)
			result[key.Line] = byIdx
		}
		byIdx[key.Index] = branch
	}
	return result
}
