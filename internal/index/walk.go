package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Filter reports whether a directory entry should be visited. Returning
// false for a directory prunes its whole subtree.
type Filter func(path string, info os.FileInfo) bool

// NotHidden rejects entries whose name starts with a dot.
func NotHidden(_ string, info os.FileInfo) bool {
	return !strings.HasPrefix(info.Name(), ".")
}

// NotNamed rejects entries whose name is exactly one of names.
func NotNamed(names ...string) Filter {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(_ string, info os.FileInfo) bool {
		_, excluded := set[info.Name()]
		return !excluded
	}
}

// All combines filters; an entry is visited only if every filter accepts it.
func All(filters ...Filter) Filter {
	return func(path string, info os.FileInfo) bool {
		for _, f := range filters {
			if !f(path, info) {
				return false
			}
		}
		return true
	}
}

// Walk calls fn for root and for every entry below it that visit accepts,
// in lexical order. Rejected directories are not descended into. The root
// itself is never filtered.
//
// Any error reading the tree aborts the walk and is returned, as is any
// error returned by fn.
func Walk(fs afero.Fs, root string, visit Filter, fn func(path string, info os.FileInfo) error) error {
	return afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if path != root && visit != nil && !visit(path, info) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return fn(path, info)
	})
}
