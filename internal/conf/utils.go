package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/tphakala/hackrf-stream/internal/errors"
)

const appDirName = "hackrf-stream"

// GetDefaultConfigPaths returns the directories searched for config.yaml in
// order: the working directory, the user config directory and, outside
// Windows, /etc. When one of them already holds a config file only that
// directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	userDir, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-user-config-dir").
			Build()
	}

	paths := []string{".", filepath.Join(userDir, appDirName)}
	if runtime.GOOS != "windows" {
		paths = append(paths, filepath.Join("/etc", appDirName))
	}

	for _, path := range paths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return paths, nil
}
