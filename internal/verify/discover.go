package verify

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/types"
)

// partRef is a discovered part before it is measured.
type partRef struct {
	path     string
	index    int
	hasIndex bool
}

// discover globs pattern in dir and orders the matches by the numeric index
// in their names. Names without an index sort first, by name.
func discover(dir, pattern string) ([]partRef, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.ErrPartUnreadable(dir, err)
	}
	if !info.IsDir() {
		return nil, errors.ErrPartUnreadable(dir, os.ErrInvalid)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeConfigInvalid, "invalid glob pattern").
			WithContext("pattern", pattern)
	}

	refs := make([]partRef, 0, len(matches))
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.IsDir() {
			continue
		}
		idx, ok := types.ParsePartIndex(filepath.Base(m))
		if !ok {
			idx = -1
		}
		refs = append(refs, partRef{path: m, index: idx, hasIndex: ok})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].index != refs[j].index {
			return refs[i].index < refs[j].index
		}
		return refs[i].path < refs[j].path
	})
	return refs, nil
}

// missingIndices returns the gaps in 0..max(index) among the indexed refs.
func missingIndices(refs []partRef) []int {
	seen := make(map[int]bool, len(refs))
	maxIdx := -1
	for _, r := range refs {
		if !r.hasIndex {
			continue
		}
		seen[r.index] = true
		if r.index > maxIdx {
			maxIdx = r.index
		}
	}

	missing := make([]int, 0)
	for i := 0; i <= maxIdx; i++ {
		if !seen[i] {
			missing = append(missing, i)
		}
	}
	return missing
}
