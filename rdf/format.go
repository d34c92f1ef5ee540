package rdf

import (
	"path/filepath"
	"strings"
)

// Format identifies RDF serialization formats.
type Format string

const (
	FormatNTriples Format = "ntriples"
	FormatNQuads   Format = "nquads"
	FormatJSONLD   Format = "jsonld"
)

// ParseFormat normalizes a format string.
func ParseFormat(value string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ntriples", "nt":
		return FormatNTriples, true
	case "nquads", "nq":
		return FormatNQuads, true
	case "jsonld", "json-ld", "json":
		return FormatJSONLD, true
	default:
		return "", false
	}
}

// FormatFromPath resolves the format of a file from its extension. A trailing
// ".gz" is stripped and reported through gzipped.
func FormatFromPath(path string) (format Format, gzipped bool, ok bool) {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".gz") {
		gzipped = true
		name = strings.TrimSuffix(name, ".gz")
	}
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	format, ok = ParseFormat(ext)
	return format, gzipped, ok
}
