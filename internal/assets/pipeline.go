// Package assets owns the on-disk uploaded-document tree:
// <root>/<sanitized-principal>/<category>/<timestamp>-<sanitized-base>.<ext>
// plus a .meta.json ingestion sidecar next to each file. No other component
// writes under the tree.
package assets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/insightlm/orchestrator/internal/model"
)

// MaxUploadSize is the hard per-file limit (20 MiB).
const MaxUploadSize = 20 << 20

// ErrInvalidType marks uploads whose extension/mime pair is not allowlisted
// or whose categorizations disagree.
var ErrInvalidType = errors.New("invalid file type")

// ErrTooLarge marks uploads over MaxUploadSize.
var ErrTooLarge = errors.New("file too large")

// StoredFile describes one persisted upload.
type StoredFile struct {
	ServerName   string `json:"serverFilename"`
	OriginalName string `json:"originalName"`
	Category     string `json:"category"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	// Path is the absolute on-disk location.
	Path string `json:"-"`
}

// Tree manages one assets root directory.
type Tree struct {
	root string
	log  zerolog.Logger
	// now is swappable in tests; server filenames embed its millisecond value.
	now func() time.Time
}

// NewTree creates the root directory if needed.
func NewTree(root string, log zerolog.Logger) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create assets root: %w", err)
	}
	return &Tree{root: abs, log: log, now: time.Now}, nil
}

// Save validates, classifies, and writes one upload for the principal.
// size is the declared length; the write re-checks the cap.
func (t *Tree) Save(p *model.Principal, originalName, mimeType string, size int64, r io.Reader) (*StoredFile, error) {
	if size > MaxUploadSize {
		return nil, ErrTooLarge
	}
	category, ok := Classify(originalName, mimeType)
	if !ok {
		return nil, ErrInvalidType
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	base := Sanitize(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	serverName := fmt.Sprintf("%d-%s%s", t.now().UnixMilli(), base, ext)

	dir := filepath.Join(t.root, Sanitize(p.DisplayName), category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create category dir: %w", err)
	}
	path := filepath.Join(dir, serverName)

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	written, err := io.Copy(f, io.LimitReader(r, MaxUploadSize+1))
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	if written > MaxUploadSize {
		_ = os.Remove(path)
		return nil, ErrTooLarge
	}

	t.log.Info().Str("user_id", p.UserID).Str("file", serverName).
		Str("category", category).Int64("size", written).Msg("upload stored")

	return &StoredFile{
		ServerName:   serverName,
		OriginalName: originalName,
		Category:     category,
		MimeType:     mimeType,
		Size:         written,
		Path:         path,
	}, nil
}

// Lookup finds a stored file by server filename for the given principal,
// searching all categories. Returns model.ErrNotFound when absent.
func (t *Tree) Lookup(p *model.Principal, serverName string) (*StoredFile, error) {
	if strings.ContainsAny(serverName, "/\\") || strings.Contains(serverName, "..") {
		return nil, model.ErrNotFound
	}
	userDir := filepath.Join(t.root, Sanitize(p.DisplayName))
	for _, category := range []string{CategoryDocs, CategoryCode, CategoryImages, CategoryOthers} {
		path := filepath.Join(userDir, category, serverName)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		return &StoredFile{
			ServerName: serverName,
			Category:   category,
			Size:       info.Size(),
			Path:       path,
		}, nil
	}
	return nil, model.ErrNotFound
}
