// Package discovery walks input paths, classifies each entry by content
// sniffing and extension, and emits WorkItems for the producer stage.
package discovery

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

// WarnFunc receives a non-fatal discovery problem: an unreadable file or a
// malformed archive member. Discovery never aborts on these.
type WarnFunc func(path string, err error)

// errArchivedProfile marks raw LLVM profiles found inside archives, which
// cannot be handed to llvm-profdata without an on-disk directory.
var errArchivedProfile = errors.New("raw LLVM profiles inside archives are not supported")

// fileID identifies a file by device+inode for symlink-cycle detection.
type fileID struct {
	dev, ino uint64
}

type rawEntry struct {
	// path is the real on-disk path for plain files; empty for archive
	// members.
	path string
	dir  string
	base string
	ext  string

	archiveName string
	memberName  string
	payload     []byte
}

// Discover walks roots (directories, archives, or individual files),
// classifies every entry, and returns the resulting WorkItems. It never
// returns an error itself; per-entry problems are reported through warn.
func Discover(roots []string, warn WarnFunc) []coverage.WorkItem {
	if warn == nil {
		warn = func(string, error) {}
	}
	var entries []rawEntry
	visited := make(map[fileID]struct{})

	for _, root := range roots {
		walkPath(root, visited, &entries, warn)
	}

	return classifyAndPair(entries, warn)
}

func walkPath(path string, visited map[fileID]struct{}, entries *[]rawEntry, warn WarnFunc) {
	info, err := os.Lstat(path)
	if err != nil {
		warn(path, err)
		return
	}

	if info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			warn(path, err)
			return
		}
		real, err := os.Stat(resolved)
		if err != nil {
			warn(path, err)
			return
		}
		if id, ok := fileKey(real); ok {
			if _, seen := visited[id]; seen {
				return
			}
			visited[id] = struct{}{}
		}
		walkPath(resolved, visited, entries, warn)
		return
	}

	if info.IsDir() {
		children, err := os.ReadDir(path)
		if err != nil {
			warn(path, err)
			return
		}
		for _, child := range children {
			walkPath(filepath.Join(path, child.Name()), visited, entries, warn)
		}
		return
	}

	if id, ok := fileKey(info); ok {
		if _, seen := visited[id]; seen {
			return
		}
		visited[id] = struct{}{}
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		expandArchive(path, entries, warn)
		return
	}

	*entries = append(*entries, rawEntry{
		path: path,
		dir:  filepath.Dir(path),
		base: filepath.Base(path),
		ext:  strings.ToLower(filepath.Ext(path)),
	})
}

func expandArchive(path string, entries *[]rawEntry, warn WarnFunc) {
	r, err := zip.OpenReader(path)
	if err != nil {
		warn(path, err)
		return
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			warn(path+"!"+f.Name, err)
			continue
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			warn(path+"!"+f.Name, err)
			continue
		}
		*entries = append(*entries, rawEntry{
			dir:         filepath.Dir(f.Name),
			base:        filepath.Base(f.Name),
			ext:         strings.ToLower(filepath.Ext(f.Name)),
			archiveName: path,
			memberName:  f.Name,
			payload:     data,
		})
	}
}

// classifyAndPair classifies every entry and pairs .gcno/.gcda siblings
// that share a stem within the same directory (or archive).
func classifyAndPair(entries []rawEntry, warn WarnFunc) []coverage.WorkItem {
	type stemKey struct {
		scope string // directory, or "archive:<name>/<dir>" for archive members
		stem  string
	}
	gcnoGcda := make(map[stemKey]*coverage.WorkItem)
	profrawDirs := make(map[string]struct{})

	var items []coverage.WorkItem

	for _, e := range entries {
		content, err := entryHead(e)
		if err != nil {
			warn(identify(e), err)
			continue
		}

		kind := classifyExtension(e.base)
		if kind == "" {
			kind = sniffContent(content)
		}
		if kind == "" {
			// Files matching neither a decisive extension nor a magic
			// signature are simply not work items.
			if e.ext == ".gcno" || e.ext == ".gcda" {
				kind = coverage.KindGcnoGcdaPair
			} else {
				continue
			}
		}

		if kind == coverage.KindProfrawDirectory {
			// Raw LLVM profiles are processed a directory at a time so
			// every .profraw from one test run merges into a single
			// profdata. Members of archives have no on-disk directory to
			// hand to llvm-profdata.
			if e.archiveName != "" {
				warn(identify(e), errArchivedProfile)
				continue
			}
			if _, seen := profrawDirs[e.dir]; !seen {
				profrawDirs[e.dir] = struct{}{}
				items = append(items, coverage.WorkItem{
					Kind:       coverage.KindProfrawDirectory,
					Path:       e.dir,
					SourceRoot: e.dir,
				})
			}
			continue
		}

		if kind == coverage.KindGcnoGcdaPair {
			scope := e.dir
			if e.archiveName != "" {
				scope = "archive:" + e.archiveName + "/" + e.dir
			}
			stem := strings.TrimSuffix(e.base, filepath.Ext(e.base))
			key := stemKey{scope: scope, stem: stem}
			item, ok := gcnoGcda[key]
			if !ok {
				item = &coverage.WorkItem{Kind: coverage.KindGcnoGcdaPair, SourceRoot: e.dir}
				gcnoGcda[key] = item
			}
			switch strings.ToLower(filepath.Ext(e.base)) {
			case ".gcno":
				item.GcnoPath = e.path
			case ".gcda":
				item.GcdaPath = e.path
			}
			continue
		}

		items = append(items, coverage.WorkItem{
			Kind:          kind,
			Path:          e.path,
			ArchiveName:   e.archiveName,
			ArchiveMember: e.memberName,
			Payload:       e.payload,
			SourceRoot:    e.dir,
		})
	}

	for _, item := range gcnoGcda {
		items = append(items, *item)
	}

	return items
}

func entryHead(e rawEntry) ([]byte, error) {
	if e.payload != nil {
		if len(e.payload) > sniffBytes {
			return e.payload[:sniffBytes], nil
		}
		return e.payload, nil
	}
	if e.ext == ".gcno" || e.ext == ".gcda" {
		return readHead(e.path, 4)
	}
	return readHead(e.path, sniffBytes)
}

func identify(e rawEntry) string {
	if e.archiveName != "" {
		return e.archiveName + "!" + e.memberName
	}
	return e.path
}
