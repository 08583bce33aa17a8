package converter

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/yuanying/epubsplit/internal/markup"
)

// contentProperties maps manifest properties that describe a document's
// content to the element that makes them true. Other properties, such as
// nav or cover-image, belong to the original document only.
var contentProperties = []struct {
	property string
	element  string
}{
	{"mathml", "math"},
	{"scripted", "script"},
	{"svg", "svg"},
}

// partProperties returns the properties attribute for a part: the content
// properties of the original chapter that still hold for the part.
func partProperties(original []string, content string) string {
	if len(original) == 0 {
		return ""
	}
	declared := make(map[string]bool, len(original))
	for _, p := range original {
		declared[p] = true
	}

	doc, err := markup.Parse(content)
	if err != nil {
		return ""
	}
	var props []string
	for _, cp := range contentProperties {
		if !declared[cp.property] {
			continue
		}
		name := cp.element
		if markup.ContainsElement(doc.Root(), func(el *etree.Element) bool {
			return markup.LocalName(el) == name
		}) {
			props = append(props, cp.property)
		}
	}
	return strings.Join(props, " ")
}
