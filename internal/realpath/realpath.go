// Package realpath resolves script supplied paths to absolute filesystem
// paths, the way realpath(3) does, but tolerating paths that do not exist so
// that the consumer can report its own error for them.
package realpath

import (
	"errors"
	"io/fs"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
)

// Resolve expands a leading ~, makes raw absolute against the working
// directory and evaluates symlinks. A missing file resolves to its cleaned
// absolute path.
func Resolve(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("realpath: empty path")
	}
	expanded, err := homedir.Expand(raw)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return abs, nil
	}
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// Under returns a resolver that interprets relative paths against root
// instead of the working directory. An empty root behaves like Resolve.
func Under(root string) func(string) (string, error) {
	return func(raw string) (string, error) {
		if root == "" || raw == "" || filepath.IsAbs(raw) || raw[0] == '~' {
			return Resolve(raw)
		}
		base, err := Resolve(root)
		if err != nil {
			return "", err
		}
		return Resolve(filepath.Join(base, raw))
	}
}
