package epub

import (
	"net/url"
	"path"
	"strings"
)

// SplitFragment splits an href into its path and fragment parts.
func SplitFragment(href string) (string, string) {
	if i := strings.Index(href, "#"); i >= 0 {
		return href[:i], href[i+1:]
	}
	return href, ""
}

// ResolvePath resolves an href relative to baseDir into an archive path.
// Percent-escapes are decoded since archive entries are stored unescaped.
func ResolvePath(baseDir, rel string) string {
	if u, err := url.PathUnescape(rel); err == nil {
		rel = u
	}
	if baseDir == "" {
		return path.Clean(rel)
	}
	return path.Clean(path.Join(baseDir, rel))
}

// IsExternal reports whether href points outside the book.
func IsExternal(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	return u.Scheme != "" || strings.HasPrefix(href, "//")
}

func isXHTML(mediaType string) bool {
	return mediaType == "application/xhtml+xml" || mediaType == "text/html"
}
