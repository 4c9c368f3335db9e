package attachment

import (
	"io"
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultMimeType = "application/octet-stream"

// extensions known regardless of the host mime tables.
var knownExtensions = map[string][]string{
	"image/png":        {".png"},
	"image/jpeg":       {".jpg", ".jpeg"},
	"image/gif":        {".gif"},
	"image/webp":       {".webp"},
	"application/pdf":  {".pdf"},
	"text/plain":       {".txt", ".text", ".log"},
	"text/markdown":    {".md", ".markdown"},
	"text/csv":         {".csv"},
	"application/json": {".json"},
}

func mimeTypeFromExtension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	for mt, exts := range knownExtensions {
		for _, e := range exts {
			if e == ext {
				return mt
			}
		}
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return baseMimeType(mt)
	}
	return ""
}

// sniffMimeType looks at content first and falls back on the file name when
// the content is inconclusive.
func sniffMimeType(r io.Reader, name string) (string, error) {
	detected, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	mt := baseMimeType(detected.String())
	if mt == defaultMimeType || mt == "text/plain" {
		if byExt := mimeTypeFromExtension(name); byExt != "" {
			return byExt, nil
		}
	}
	return mt, nil
}

func baseMimeType(mt string) string {
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	return strings.TrimSpace(strings.Split(mt, ";")[0])
}

// ExtensionsFor lists the file extensions for a mime type.
func ExtensionsFor(mimeType string) []string {
	if exts, ok := knownExtensions[mimeType]; ok {
		return exts
	}
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil {
		return nil
	}
	sort.Strings(exts)
	return exts
}

// ParseSupportedFormats renders the supported mime types as a file dialog
// wildcard: an "all supported" entry followed by one entry per type.
func ParseSupportedFormats(formats []string) string {
	var all []string
	var entries []string
	for _, mt := range formats {
		exts := ExtensionsFor(mt)
		if len(exts) == 0 {
			continue
		}
		patterns := make([]string, 0, len(exts))
		for _, ext := range exts {
			patterns = append(patterns, "*"+ext)
		}
		all = append(all, patterns...)
		joined := strings.Join(patterns, ";")
		entries = append(entries, mt+" ("+joined+")|"+joined)
	}
	if len(all) == 0 {
		return ""
	}
	joined := strings.Join(all, ";")
	return strings.Join(append([]string{"All supported files (" + joined + ")|" + joined}, entries...), "|")
}
