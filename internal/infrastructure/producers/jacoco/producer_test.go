package jacoco

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

const sampleReport = `<?xml version="1.0" encoding="UTF-8"?>
<report name="demo">
  <package name="com/example">
    <class name="com/example/Foo" sourcefilename="Foo.java">
      <method name="bar" line="4" />
    </class>
    <sourcefile name="Foo.java">
      <line nr="3" mi="0" ci="2" mb="0" cb="0"/>
      <line nr="4" mi="0" ci="1" mb="1" cb="1"/>
      <line nr="5" mi="1" ci="0" mb="0" cb="0"/>
    </sourcefile>
  </package>
</report>`

func TestParseOneRecordPerSourcefile(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleReport))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Foo.java", records[0].SourcePath)
}

func TestParseLineCountFromCI(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleReport))
	require.NoError(t, err)
	rec := records[0]
	assert.Equal(t, uint64(2), rec.Lines[3])
	assert.Equal(t, uint64(0), rec.Lines[5])
}

func TestParseBranchesFromMbCb(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleReport))
	require.NoError(t, err)
	rec := records[0]
	// line 4: mb=1, cb=1 -> 2 branches total, 1 taken (cb), 1 not taken (mb)
	require.Len(t, branchesOnLine(rec, 4), 2)
	assert.True(t, rec.Branches[coverage.BranchKey{Line: 4, Index: 0}].Taken)
	assert.False(t, rec.Branches[coverage.BranchKey{Line: 4, Index: 1}].Taken)
}

func TestParseMethodAttachedFromClassElement(t *testing.T) {
	records, err := Parse(strings.NewReader(sampleReport))
	require.NoError(t, err)
	fn, ok := records[0].Functions["bar"]
	require.True(t, ok)
	assert.Equal(t, 4, fn.StartLine)
	assert.True(t, fn.Executed)
}

func branchesOnLine(rec *coverage.Record, line int) []coverage.Branch {
	var out []coverage.Branch
	for k, v := range rec.Branches {
		if k.Line == line {
			out = append(out, v)
		}
	}
	return out
}
