package export

import (
	"path/filepath"
	"strings"
	"time"
)

// timestampLayout is minute precision with filesystem-safe separators.
const timestampLayout = "2006-01-02T15-04"

// FileName picks the download name. A non-empty custom name is used as is,
// with the format extension appended unless already present. Otherwise the
// name is <base>-edited-<timestamp>.<ext>, base being the original upload's
// name without extension, or "image".
func FileName(custom, originalName string, format Format, now time.Time) string {
	ext := format.Extension()

	if custom = strings.TrimSpace(custom); custom != "" {
		if hasExtension(custom, format) {
			return custom
		}
		return custom + "." + ext
	}

	base := baseName(originalName)
	return base + "-edited-" + now.UTC().Format(timestampLayout) + "." + ext
}

func baseName(originalName string) string {
	name := filepath.Base(strings.TrimSpace(originalName))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "image"
	}
	return name
}

func hasExtension(name string, format Format) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch format {
	case FormatJPG:
		return ext == ".jpg" || ext == ".jpeg"
	default:
		return ext == "."+format.Extension()
	}
}
