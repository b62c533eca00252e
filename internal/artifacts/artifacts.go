// Package artifacts serves generated files (slide decks, reports) persisted
// under a fixed directory by upstream-supplied opaque ids.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/insightlm/orchestrator/internal/model"
)

// ErrInvalidID marks file ids that could escape the artifact directory.
var ErrInvalidID = errors.New("invalid file id")

// ownersDir holds one ownership record per artifact id. Ids cannot contain
// path separators, so artifact lookups can never reach into it.
const ownersDir = ".owners"

// Dir is the fixed generated-artifact directory.
type Dir struct {
	root string
}

// NewDir creates the artifact directory if needed.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, ownersDir), 0o755); err != nil {
		return nil, fmt.Errorf("create generated dir: %w", err)
	}
	return &Dir{root: abs}, nil
}

// ValidateID rejects ids containing path separators or parent references
// before any path construction happens.
func ValidateID(id string) error {
	if id == "" || strings.Contains(id, "..") || strings.ContainsAny(id, "/\\") {
		return ErrInvalidID
	}
	return nil
}

// RecordOwner binds the artifact id to the principal that requested its
// generation. Downloads require a matching record.
func (d *Dir) RecordOwner(id, userID string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.root, ownersDir, id), []byte(userID), 0o600)
}

// Resolve returns the absolute path of the artifact with the given id, for
// the principal that created it. A foreign or unrecorded principal gets
// model.ErrNotFound, same as a missing file. The result is guaranteed to be
// a descendant of the artifact directory.
func (d *Dir) Resolve(id, userID string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	path := filepath.Join(d.root, id)
	if !strings.HasPrefix(path, d.root+string(os.PathSeparator)) {
		return "", ErrInvalidID
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", model.ErrNotFound
		}
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", model.ErrNotFound
	}
	owner, err := os.ReadFile(filepath.Join(d.root, ownersDir, id))
	if err != nil || string(owner) != userID {
		return "", model.ErrNotFound
	}
	return path, nil
}
