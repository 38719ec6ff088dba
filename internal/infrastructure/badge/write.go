package badge

import (
	"fmt"
	"os"
)

// WriteFile renders a coverage badge for the given line percentage to
// path.
func WriteFile(path string, percent float64) error {
	f, err := os.Create(path) // #nosec G304 - path comes from --badge configuration
	if err != nil {
		return fmt.Errorf("create badge file: %w", err)
	}
	defer f.Close()
	return Generate(f, Options{Label: "coverage", Percent: percent, Style: StyleFlat})
}
