package opf

import (
	"fmt"
	"strings"

	"github.com/yuanying/epubsplit/internal/markup"
)

// Report is the result of ValidateStructure.
type Report struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// requiredElements are checked in this order.
var requiredElements = []string{"package", "manifest", "spine", "metadata"}

// ValidateStructure checks that the package root, manifest, spine and
// metadata elements are present and reports every one that is missing.
func ValidateStructure(packageDoc string) Report {
	tree, err := markup.ParseXML(packageDoc)
	if err != nil {
		return Report{Error: fmt.Sprintf("XML parsing error: %v", err)}
	}

	var missing []string
	for _, name := range requiredElements {
		var found bool
		if name == "package" {
			found = markup.LocalName(tree.Root()) == name
		} else {
			found = markup.FindFirst(&tree.Element, name) != nil
		}
		if !found {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return Report{
			Missing: missing,
			Error:   "Missing required elements: " + strings.Join(missing, ", "),
		}
	}
	return Report{Valid: true}
}

// ExistingManifestItems lists the manifest items in document order.
func ExistingManifestItems(packageDoc string) ([]ManifestItem, error) {
	tree, err := markup.ParseXML(packageDoc)
	if err != nil {
		return nil, err
	}
	manifest := markup.FindFirst(&tree.Element, "manifest")
	if manifest == nil {
		return nil, &StructuralError{Element: "manifest"}
	}

	var items []ManifestItem
	for _, el := range manifest.ChildElements() {
		if markup.LocalName(el) != "item" {
			continue
		}
		id, _ := markup.Attr(el, "id")
		href, _ := markup.Attr(el, "href")
		mediaType, _ := markup.Attr(el, "media-type")
		props, _ := markup.Attr(el, "properties")
		items = append(items, ManifestItem{ID: id, Href: href, MediaType: mediaType, Properties: props})
	}
	return items, nil
}

// ExistingSpineItems lists the spine itemrefs in reading order.
func ExistingSpineItems(packageDoc string) ([]SpineItemref, error) {
	tree, err := markup.ParseXML(packageDoc)
	if err != nil {
		return nil, err
	}
	spine := markup.FindFirst(&tree.Element, "spine")
	if spine == nil {
		return nil, &StructuralError{Element: "spine"}
	}

	var refs []SpineItemref
	for _, el := range spine.ChildElements() {
		if markup.LocalName(el) != "itemref" {
			continue
		}
		idref, _ := markup.Attr(el, "idref")
		linear, _ := markup.Attr(el, "linear")
		if linear == "" {
			linear = "yes"
		}
		refs = append(refs, SpineItemref{IDRef: idref, Linear: linear})
	}
	return refs, nil
}

// ManifestIDs returns the ids of items.
func ManifestIDs(items []ManifestItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// PartItems builds the manifest items for parts 2..N of a split chapter.
// hrefs holds every part's href, hrefs[0] being the original's, which keeps
// both its href and its id. The remaining ids come from AllocateIDs with the
// original id left out of the collision set.
func PartItems(original ManifestItem, hrefs []string, existingIDs []string) []ManifestItem {
	if len(hrefs) <= 1 {
		return nil
	}

	others := make([]string, 0, len(existingIDs))
	for _, id := range existingIDs {
		if id != original.ID {
			others = append(others, id)
		}
	}
	ids := AllocateIDs(original.ID, len(hrefs), others)

	mediaType := original.MediaType
	if mediaType == "" {
		mediaType = ChapterMediaType
	}
	items := make([]ManifestItem, 0, len(hrefs)-1)
	for i := 1; i < len(hrefs); i++ {
		items = append(items, ManifestItem{
			ID:        ids[i],
			Href:      hrefs[i],
			MediaType: mediaType,
		})
	}
	return items
}
