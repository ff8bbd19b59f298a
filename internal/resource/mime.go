package resource

import (
	"mime"
	"path"
	"strings"
)

// ContentType maps a resource name to a media type. Entries in overrides are
// keyed by extension, with or without the leading dot, and win over the
// system table. An unknown extension yields "".
func ContentType(name string, overrides map[string]string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if t, ok := overrides[ext]; ok {
		return t
	}
	if t, ok := overrides[ext[1:]]; ok {
		return t
	}
	return mime.TypeByExtension(ext)
}

func mediaType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(t))
}
