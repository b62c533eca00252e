package assets

import (
	"path/filepath"
	"strings"
)

// Document categories. Every stored file lives under exactly one.
const (
	CategoryDocs   = "docs"
	CategoryCode   = "code"
	CategoryImages = "images"
	CategoryOthers = "others"
)

// maxBaseLength caps the sanitized base name of an uploaded file.
const maxBaseLength = 100

// mimeCategories is the mime-type allowlist and its category mapping.
var mimeCategories = map[string]string{
	"application/pdf":    CategoryDocs,
	"text/plain":         CategoryDocs,
	"text/markdown":      CategoryDocs,
	"application/msword": CategoryDocs,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": CategoryDocs,

	"text/x-python":          CategoryCode,
	"text/x-go":              CategoryCode,
	"text/x-c":               CategoryCode,
	"text/javascript":        CategoryCode,
	"application/javascript": CategoryCode,
	"application/json":       CategoryCode,
	"application/x-yaml":     CategoryCode,

	"image/png":  CategoryImages,
	"image/jpeg": CategoryImages,
	"image/gif":  CategoryImages,
	"image/webp": CategoryImages,

	"text/csv": CategoryOthers,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": CategoryOthers,
}

// extCategories is the extension allowlist and its category mapping.
// Extensions are lower-case with the leading dot.
var extCategories = map[string]string{
	".pdf":  CategoryDocs,
	".txt":  CategoryDocs,
	".md":   CategoryDocs,
	".doc":  CategoryDocs,
	".docx": CategoryDocs,

	".py":   CategoryCode,
	".go":   CategoryCode,
	".c":    CategoryCode,
	".js":   CategoryCode,
	".json": CategoryCode,
	".yaml": CategoryCode,
	".yml":  CategoryCode,

	".png":  CategoryImages,
	".jpg":  CategoryImages,
	".jpeg": CategoryImages,
	".gif":  CategoryImages,
	".webp": CategoryImages,

	".csv":  CategoryOthers,
	".xlsx": CategoryOthers,
}

// CategoryForMime returns the category for an allowlisted mime type.
func CategoryForMime(mimeType string) (string, bool) {
	c, ok := mimeCategories[normalizeMime(mimeType)]
	return c, ok
}

// CategoryForExt returns the category for an allowlisted extension.
func CategoryForExt(ext string) (string, bool) {
	c, ok := extCategories[strings.ToLower(ext)]
	return c, ok
}

// Classify validates an upload's extension and mime type against the
// allowlists and checks that their categorizations agree. A false second
// return means the upload must be rejected.
func Classify(originalName, mimeType string) (string, bool) {
	extCat, ok := CategoryForExt(filepath.Ext(originalName))
	if !ok {
		return "", false
	}
	mimeCat, ok := CategoryForMime(mimeType)
	if !ok {
		return "", false
	}
	if extCat != mimeCat {
		return "", false
	}
	return mimeCat, true
}

// Sanitize replaces every character outside [A-Za-z0-9._-] with an
// underscore and caps the result length. Used for principal directory names
// and file base names.
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > maxBaseLength {
		out = out[:maxBaseLength]
	}
	if out == "" {
		out = "_"
	}
	return out
}

func normalizeMime(m string) string {
	// Strip parameters like "; charset=utf-8".
	if i := strings.Index(m, ";"); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}
