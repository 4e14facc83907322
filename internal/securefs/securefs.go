// Package securefs confines client supplied file paths to a base directory.
//
// Paths are checked lexically first. On the OS filesystem the deepest existing
// ancestor of the target is also resolved through symlinks, so a link inside the
// base directory cannot redirect a recording outside it.
package securefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/tphakala/hackrf-stream/internal/errors"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// Sentinel errors for the securefs package
var (
	// ErrPathTraversal indicates a path that leaves the base directory
	ErrPathTraversal = errors.NewStd("security error: path attempts to traverse outside base directory")

	// ErrInvalidPath indicates a path that cannot name a file inside the base directory
	ErrInvalidPath = errors.NewStd("security error: invalid path specification")
)

// BaseDirPermissions is used when the base directory has to be created
const BaseDirPermissions os.FileMode = 0o750

// GetLogger returns the securefs module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("securefs")
}

// Sandbox resolves paths against a base directory on an afero filesystem
type Sandbox struct {
	baseDir      string
	resolveLinks bool
}

// New creates the base directory on fs if needed and returns a Sandbox for it
func New(fs afero.Fs, baseDir string) (*Sandbox, error) {
	if baseDir == "" {
		return nil, pathError(ErrInvalidPath, baseDir, "base directory is empty")
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	if err := fs.MkdirAll(absBase, BaseDirPermissions); err != nil {
		return nil, errors.New(fmt.Errorf("failed to create base directory: %w", err)).
			Component("securefs").
			Category(errors.CategoryFileIO).
			Context("base_dir", absBase).
			Build()
	}

	_, onDisk := fs.(*afero.OsFs)
	GetLogger().Debug("sandbox ready",
		logger.String("base_dir", absBase),
		logger.Bool("resolve_links", onDisk))
	return &Sandbox{baseDir: absBase, resolveLinks: onDisk}, nil
}

// BaseDir returns the absolute base directory
func (s *Sandbox) BaseDir() string { return s.baseDir }

// Resolve maps path to an absolute path inside the base directory. Relative paths
// are taken from the base; absolute paths must already lie inside it.
func (s *Sandbox) Resolve(path string) (string, error) {
	if path == "" || strings.ContainsRune(path, 0) {
		return "", pathError(ErrInvalidPath, path, "empty or contains NUL")
	}

	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		rel, err := ValidateRelativePath(path)
		if err != nil {
			return "", err
		}
		target = filepath.Join(s.baseDir, rel)
	}

	if target == s.baseDir {
		return "", pathError(ErrInvalidPath, path, "names the base directory")
	}

	within, err := isPathWithinBase(s.baseDir, target, s.resolveLinks)
	if err != nil {
		return "", err
	}
	if !within {
		return "", pathError(ErrPathTraversal, path, "outside "+s.baseDir)
	}
	return target, nil
}

// ValidateRelativePath cleans relPath and rejects absolute paths and upward traversal
func ValidateRelativePath(relPath string) (string, error) {
	cleaned := filepath.Clean(relPath)

	if filepath.IsAbs(cleaned) {
		return "", pathError(ErrInvalidPath, relPath, "must be relative")
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", pathError(ErrPathTraversal, relPath, "climbs above the base directory")
	}
	return cleaned, nil
}

// IsPathWithinBase reports whether targetPath is basePath or below it on the OS filesystem
func IsPathWithinBase(basePath, targetPath string) (bool, error) {
	return isPathWithinBase(basePath, targetPath, true)
}

func isPathWithinBase(basePath, targetPath string, resolveLinks bool) (bool, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return false, fmt.Errorf("failed to resolve base path: %w", err)
	}
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return false, fmt.Errorf("failed to resolve target path: %w", err)
	}

	if !isPathPrefix(absBase, absTarget) {
		return false, nil
	}
	if !resolveLinks {
		return true, nil
	}
	return isPathPrefix(resolveExisting(absBase), resolveExisting(absTarget)), nil
}

// resolveExisting resolves symlinks in the deepest existing ancestor of path and
// appends the components that do not exist yet.
func resolveExisting(path string) string {
	suffix := ""
	for dir := path; ; {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, suffix)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}
		suffix = filepath.Join(filepath.Base(dir), suffix)
		dir = parent
	}
}

// isPathPrefix checks if target is within or equal to base
func isPathPrefix(absBase, absTarget string) bool {
	absBase, absTarget = filepath.Clean(absBase), filepath.Clean(absTarget)
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(filepath.Separator))
}

func pathError(sentinel error, path, reason string) error {
	return errors.New(fmt.Errorf("%w: %s", sentinel, reason)).
		Component("securefs").
		Category(errors.CategoryValidation).
		Context("path", path).
		Build()
}
