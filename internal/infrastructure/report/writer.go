// Package report renders a finalized coverage map into the output
// formats named by --output-types: text (human-readable table), json
// (machine-readable), html, and lcov (round-trippable INFO text).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/felixgeelhaar/grcov/internal/application"
	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

// Writer renders a coverage.Map in one output format.
type Writer struct{}

// Write walks m in stable key order and renders it as format into w.
func (Writer) Write(w io.Writer, m *coverage.Map, cfg application.Config, format string) error {
	views := buildViews(m)
	switch format {
	case "json":
		return writeJSON(w, views)
	case "html":
		return writeHTML(w, views)
	case "lcov":
		return writeLcov(w, views, cfg.Branch)
	case "text", "":
		return writeText(w, views, cfg.Precision, cfg.Branch)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func buildViews(m *coverage.Map) []coverage.FileView {
	keys := m.Keys()
	views := make([]coverage.FileView, 0, len(keys))
	for _, key := range keys {
		rec, ok := m.Get(key)
		if !ok {
			continue
		}
		views = append(views, coverage.NewFileView(key, rec))
	}
	return views
}

func totalSummary(views []coverage.FileView) coverage.Summary {
	var total coverage.Summary
	for _, v := range views {
		total.Add(v.Summary)
	}
	return total
}

func writeText(w io.Writer, views []coverage.FileView, precision int, branch bool) error {
	if precision <= 0 {
		precision = 1
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "File\tLines\tLine %"
	if branch {
		header += "\tBranches\tBranch %"
	}
	_, _ = fmt.Fprintln(tw, header)

	colorize := colorEnabled(w)
	goodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A")).Bold(true)
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true)
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#CA8A04")).Bold(true)

	colorPercent := func(pct float64) string {
		s := fmt.Sprintf("%.*f%%", precision, pct)
		if !colorize {
			return s
		}
		switch coverage.BandFor(pct) {
		case coverage.BandGood:
			return goodStyle.Render(s)
		case coverage.BandWarn:
			return warnStyle.Render(s)
		default:
			return badStyle.Render(s)
		}
	}

	for _, v := range views {
		row := fmt.Sprintf("%s\t%d/%d\t%s", v.Path, v.Summary.CoveredLines, v.Summary.TotalLines, colorPercent(v.Summary.LinePercent()))
		if branch {
			row += fmt.Sprintf("\t%d/%d\t%s", v.Summary.CoveredBranches, v.Summary.TotalBranches, colorPercent(v.Summary.BranchPercent()))
		}
		_, _ = fmt.Fprintln(tw, row)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	total := totalSummary(views)
	fmt.Fprintf(w, "\nTotal\t%d/%d lines (%s)", total.CoveredLines, total.TotalLines, colorPercent(total.LinePercent()))
	if branch {
		fmt.Fprintf(w, ", %d/%d branches (%s)", total.CoveredBranches, total.TotalBranches, colorPercent(total.BranchPercent()))
	}
	fmt.Fprintln(w)
	return nil
}

func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}

type jsonFile struct {
	Path     string            `json:"path"`
	Lines    map[string]uint64 `json:"lines,omitempty"`
	Branches []jsonBranch      `json:"branches,omitempty"`
	Summary  coverage.Summary  `json:"summary"`
}

type jsonBranch struct {
	Line     int  `json:"line"`
	Index    int  `json:"index"`
	Taken    bool `json:"taken"`
	Executed bool `json:"executed"`
}

func writeJSON(w io.Writer, views []coverage.FileView) error {
	files := make([]jsonFile, 0, len(views))
	for _, v := range views {
		lines := make(map[string]uint64, len(v.Lines))
		for _, l := range v.Lines {
			lines[fmt.Sprintf("%d", l.Line)] = l.Count
		}
		branches := make([]jsonBranch, 0, len(v.Branches))
		for _, b := range v.Branches {
			branches = append(branches, jsonBranch{Line: b.Line, Index: b.Index, Taken: b.Taken, Executed: b.Executed})
		}
		files = append(files, jsonFile{Path: v.Path, Lines: lines, Branches: branches, Summary: v.Summary})
	}
	payload := struct {
		Files   []jsonFile       `json:"files"`
		Summary coverage.Summary `json:"summary"`
	}{Files: files, Summary: totalSummary(views)}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writeLcov(w io.Writer, views []coverage.FileView, branch bool) error {
	for _, v := range views {
		fmt.Fprintf(w, "SF:%s\n", v.Path)
		for _, fn := range v.Functions {
			fmt.Fprintf(w, "FN:%d,%s\n", fn.StartLine, fn.Name)
		}
		for _, fn := range v.Functions {
			hits := 0
			if fn.Executed {
				hits = 1
			}
			fmt.Fprintf(w, "FNDA:%d,%s\n", hits, fn.Name)
		}
		fmt.Fprintf(w, "FNF:%d\n", v.Summary.TotalFunctions)
		fmt.Fprintf(w, "FNH:%d\n", v.Summary.CoveredFunctions)
		if branch {
			for _, b := range v.Branches {
				taken := "-"
				if b.Executed {
					if b.Taken {
						taken = "1"
					} else {
						taken = "0"
					}
				}
				fmt.Fprintf(w, "BRDA:%d,0,%d,%s\n", b.Line, b.Index, taken)
			}
			fmt.Fprintf(w, "BRF:%d\n", v.Summary.TotalBranches)
			fmt.Fprintf(w, "BRH:%d\n", v.Summary.CoveredBranches)
		}
		for _, l := range v.Lines {
			fmt.Fprintf(w, "DA:%d,%d\n", l.Line, l.Count)
		}
		fmt.Fprintf(w, "LF:%d\n", v.Summary.TotalLines)
		fmt.Fprintf(w, "LH:%d\n", v.Summary.CoveredLines)
		fmt.Fprintln(w, "end_of_record")
	}
	return nil
}
