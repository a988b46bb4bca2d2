package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DataRoot is the directory relative runtime paths (log dir, sqlite file)
// resolve against: paths.data when set, otherwise the working directory.
func (p RuntimePathsConfig) DataRoot() string {
	return dataRoot(p.Data)
}

func dataRoot(raw string) string {
	if root := strings.TrimSpace(raw); root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			return abs
		}
		return filepath.Clean(root)
	}
	if wd, err := os.Getwd(); err == nil && strings.TrimSpace(wd) != "" {
		return wd
	}
	return "."
}

func resolveUnder(root, target, fallback string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		target = fallback
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(dataRoot(root), target)
}
