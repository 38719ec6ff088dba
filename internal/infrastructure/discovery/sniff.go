package discovery

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

const sniffBytes = 4096

// gcno/gcda files start with a 4-byte magic tag that reads "gcno"/"gcda"
// or, byte-reversed, "oncg"/"adcg", depending on the endianness the
// producing compiler wrote the file in.
var (
	gcnoMagicLE = []byte("oncg")
	gcnoMagicBE = []byte("gcno")
	gcdaMagicLE = []byte("adcg")
	gcdaMagicBE = []byte("gcda")
)

// classifyExtension returns a Kind from a file's extension/basename, or
// "" if the extension is not decisive (e.g. plain .xml, which needs
// content sniffing to pick Cobertura vs JaCoCo).
func classifyExtension(path string) coverage.Kind {
	ext := strings.ToLower(filepath.Ext(path))
	base := strings.ToLower(filepath.Base(path))

	switch {
	case ext == ".profraw" || ext == ".profdata":
		return coverage.KindProfrawDirectory
	case ext == ".info" || base == "lcov.info":
		return coverage.KindLcovInfo
	case ext == ".json" && strings.Contains(base, "gcov"):
		return coverage.KindGcovIntermediate
	case ext == ".out" || base == "coverage.out" || base == "cover.out":
		return coverage.KindGoCover
	case ext == ".zip":
		return coverage.KindArchiveMember
	}
	return ""
}

// sniffContent matches the head of a file against the known magic
// signatures. Returns "" if nothing matched.
func sniffContent(content []byte) coverage.Kind {
	if len(content) >= 4 {
		head := content[:4]
		if bytes.Equal(head, gcnoMagicLE) || bytes.Equal(head, gcnoMagicBE) ||
			bytes.Equal(head, gcdaMagicLE) || bytes.Equal(head, gcdaMagicBE) {
			return coverage.KindGcnoGcdaPair
		}
	}
	if len(content) >= 2 && content[0] == 'P' && content[1] == 'K' {
		return coverage.KindArchiveMember
	}
	trimmed := bytes.TrimSpace(content)
	if bytes.HasPrefix(trimmed, []byte("TN:")) || bytes.HasPrefix(trimmed, []byte("SF:")) {
		return coverage.KindLcovInfo
	}
	if bytes.HasPrefix(trimmed, []byte("<?xml")) {
		if bytes.Contains(content, []byte("<report")) {
			return coverage.KindJacocoXML
		}
		if bytes.Contains(content, []byte("<coverage")) {
			return coverage.KindCoberturaXML
		}
	}
	if bytes.HasPrefix(trimmed, []byte("mode:")) {
		return coverage.KindGoCover
	}
	if bytes.HasPrefix(trimmed, []byte("file:")) {
		return coverage.KindGcovIntermediate
	}
	return ""
}

// readHead reads up to n bytes from the start of a file, tolerating short
// or empty files.
func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path) // #nosec G304 - caller controls the discovery root
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}
