package coverage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMergeRecordCreatesAndMerges(t *testing.T) {
	m := NewMap()
	a := NewRecord("foo.c")
	a.AddLine(1, 1)
	m.MergeRecord("foo.c", a)

	b := NewRecord("foo.c")
	b.AddLine(1, 2)
	m.MergeRecord("foo.c", b)

	rec, ok := m.Get("foo.c")
	require.True(t, ok)
	assert.Equal(t, uint64(3), rec.Lines[1])
}

func TestMapKeysSortedLexicographically(t *testing.T) {
	m := NewMap()
	for _, k := range []string{"z.c", "a.c", "m.c"} {
		m.MergeRecord(k, NewRecord(k))
	}
	assert.Equal(t, []string{"a.c", "m.c", "z.c"}, m.Keys())
}

func TestMapRenameMergesIntoExistingKey(t *testing.T) {
	m := NewMap()
	old := NewRecord("old.c")
	old.AddLine(1, 1)
	m.MergeRecord("old.c", old)

	dest := NewRecord("new.c")
	dest.AddLine(1, 5)
	m.MergeRecord("new.c", dest)

	m.Rename("old.c", "new.c")

	_, ok := m.Get("old.c")
	assert.False(t, ok)
	rec, ok := m.Get("new.c")
	require.True(t, ok)
	assert.Equal(t, uint64(6), rec.Lines[1])
}

func TestMapDelete(t *testing.T) {
	m := NewMap()
	m.MergeRecord("foo.c", NewRecord("foo.c"))
	m.Delete("foo.c")
	_, ok := m.Get("foo.c")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMapConcurrentMergesOfDisjointPathsAreSafe(t *testing.T) {
	m := NewMap()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("file%d.c", i%50)
			r := NewRecord(key)
			r.AddLine(1, 1)
			m.MergeRecord(key, r)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, m.Len())
	rec, ok := m.Get("file0.c")
	require.True(t, ok)
	assert.Equal(t, uint64(4), rec.Lines[1])
}
