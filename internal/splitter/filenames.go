package splitter

import (
	"fmt"
	"path"
	"strings"
)

// DefaultExemptNames are structural or navigational documents that are
// never split.
var DefaultExemptNames = []string{
	"nav.xhtml",
	"toc.xhtml",
	"title.xhtml",
	"contents.xhtml",
	"content.xhtml",
	"author.xhtml",
	"cover.xhtml",
}

// FilenamesFor names the parts of a split document. The first part keeps
// the original name; part i (i >= 1) becomes "<base>_-<i><ext>", where ext
// starts at the last dot after the final slash.
func FilenamesFor(original string, partCount int) []string {
	if partCount <= 0 {
		return nil
	}

	ext := path.Ext(original)
	base := strings.TrimSuffix(original, ext)

	names := make([]string, 0, partCount)
	names = append(names, original)
	for i := 1; i < partCount; i++ {
		names = append(names, fmt.Sprintf("%s_-%d%s", base, i, ext))
	}
	return names
}

// baseName strips everything up to the last slash.
func baseName(filename string) string {
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		return filename[i+1:]
	}
	return filename
}
