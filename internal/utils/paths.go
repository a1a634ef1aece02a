package utils

import "path/filepath"

// ResolvePaths resolves each path against baseDir. Paths that are already
// absolute are kept as-is.
func ResolvePaths(paths []string, baseDir string) []string {
	if len(paths) == 0 {
		return nil
	}

	resolved := make([]string, len(paths))
	for i, path := range paths {
		if filepath.IsAbs(path) {
			resolved[i] = path
		} else {
			resolved[i] = filepath.Join(baseDir, path)
		}
	}
	return resolved
}
