package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

const DefaultMimeType = "text/plain"

// MimeTypeByExtension maps the extension of name to a mime type, ignoring its case.
// Unknown extensions are treated as plain text.
func MimeTypeByExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return DefaultMimeType
	}
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		// drop parameters such as "; charset=utf-8"
		if i := strings.IndexByte(mimeType, ';'); i >= 0 {
			mimeType = strings.TrimSpace(mimeType[:i])
		}
		return mimeType
	}
	return DefaultMimeType
}
