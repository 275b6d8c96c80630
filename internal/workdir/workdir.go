// Package workdir manages the shared scratch directory holding uploads and
// rendered outputs. Every name it hands out is collision free across users.
package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Dir is the managed working directory.
type Dir struct {
	root string
}

// New returns a Dir rooted at root, creating it when needed.
func New(root string) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("work directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the directory path.
func (d *Dir) Root() string {
	return d.root
}

// UploadPath returns a fresh path for a user's upload with the given extension.
func (d *Dir) UploadPath(userID int64, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	name := strconv.FormatInt(userID, 10) + "_" + token() + "." + ext
	return filepath.Join(d.root, name)
}

// OutputPath returns a fresh path for a rendered video.
func (d *Dir) OutputPath() string {
	return filepath.Join(d.root, "out_"+token()+".mp4")
}

func token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Remove deletes paths, ignoring files that are already gone. It returns the
// first other failure so callers can log it; it never stops early.
func Remove(paths ...string) error {
	var first error
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) && first == nil {
			first = fmt.Errorf("remove %s: %w", path, err)
		}
	}
	return first
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
