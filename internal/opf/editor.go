// Package opf edits EPUB package documents: it registers new chapter parts
// in the manifest and places them in the spine right after the chapter they
// came from.
package opf

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/yuanying/epubsplit/internal/markup"
)

// ChapterMediaType is the media type of XHTML content documents.
const ChapterMediaType = "application/xhtml+xml"

// ManifestItem is one manifest entry.
type ManifestItem struct {
	ID         string `json:"id"`
	Href       string `json:"href"`
	MediaType  string `json:"mediaType,omitempty"`
	Properties string `json:"properties,omitempty"`
}

// SpineItemref is one spine entry. Linear is "yes" when the attribute is
// absent.
type SpineItemref struct {
	IDRef  string `json:"idref"`
	Linear string `json:"linear"`
}

// InsertManifestItems adds items to the manifest right after the item whose
// id is afterID, in input order.
func InsertManifestItems(packageDoc, afterID string, items []ManifestItem) (string, error) {
	tree, err := markup.ParseXML(packageDoc)
	if err != nil {
		return packageDoc, err
	}
	if err := insertManifestItems(tree, afterID, items); err != nil {
		return packageDoc, err
	}
	return serialize(packageDoc, tree)
}

// InsertSpineRefs adds an itemref for each of newIDs right after the itemref
// whose idref is afterID. The new itemrefs copy its linear value. When the
// chapter is not in the spine the document is returned unchanged.
func InsertSpineRefs(packageDoc, afterID string, newIDs []string) (string, error) {
	tree, err := markup.ParseXML(packageDoc)
	if err != nil {
		return packageDoc, err
	}
	changed, err := insertSpineRefs(tree, afterID, newIDs)
	if err != nil {
		return packageDoc, err
	}
	if !changed {
		return packageDoc, nil
	}
	return serialize(packageDoc, tree)
}

// ApplyAll registers newFiles in the manifest and then in the spine. Either
// both updates are applied or packageDoc is returned unmodified together
// with the error.
func ApplyAll(packageDoc, afterID string, newFiles []ManifestItem) (string, error) {
	return withRecovery(packageDoc, func() (string, error) {
		return applyAll(packageDoc, afterID, newFiles)
	})
}

func applyAll(packageDoc, afterID string, newFiles []ManifestItem) (string, error) {
	if afterID == "" {
		return packageDoc, fmt.Errorf("%w: original id required", ErrInvalidUpdate)
	}

	tree, err := markup.ParseXML(packageDoc)
	if err != nil {
		return packageDoc, err
	}
	if err := insertManifestItems(tree, afterID, newFiles); err != nil {
		return packageDoc, err
	}

	ids := make([]string, len(newFiles))
	for i, f := range newFiles {
		ids[i] = f.ID
	}
	if _, err := insertSpineRefs(tree, afterID, ids); err != nil {
		return packageDoc, err
	}
	return serialize(packageDoc, tree)
}

// withRecovery runs update and turns a panic into an error, returning
// original in that case.
func withRecovery(original string, update func() (string, error)) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = original, fmt.Errorf("opf: unexpected failure: %v", r)
		}
	}()
	return update()
}

func serialize(original string, tree *etree.Document) (string, error) {
	out, err := markup.WriteXML(tree)
	if err != nil {
		return original, err
	}
	return out, nil
}

func insertManifestItems(tree *etree.Document, afterID string, items []ManifestItem) error {
	manifest := markup.FindFirst(&tree.Element, "manifest")
	if manifest == nil {
		return &StructuralError{Element: "manifest"}
	}

	existing := make(map[string]bool)
	var anchor *etree.Element
	for _, el := range manifest.ChildElements() {
		if markup.LocalName(el) != "item" {
			continue
		}
		id, _ := markup.Attr(el, "id")
		existing[id] = true
		if id == afterID && anchor == nil {
			anchor = el
		}
	}
	if anchor == nil {
		return &StructuralError{Element: "manifest item", ID: afterID}
	}

	// Validate everything before touching the tree.
	for _, item := range items {
		if item.ID == "" || item.Href == "" {
			return fmt.Errorf("%w: manifest item needs id and href (got id=%q href=%q)", ErrInvalidUpdate, item.ID, item.Href)
		}
		if existing[item.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, item.ID)
		}
		existing[item.ID] = true
	}

	elems := make([]*etree.Element, len(items))
	for i, item := range items {
		mediaType := item.MediaType
		if mediaType == "" {
			mediaType = ChapterMediaType
		}
		el := etree.NewElement("item")
		el.Space = anchor.Space
		el.CreateAttr("id", item.ID)
		el.CreateAttr("href", item.Href)
		el.CreateAttr("media-type", mediaType)
		if item.Properties != "" {
			el.CreateAttr("properties", item.Properties)
		}
		elems[i] = el
	}
	insertAfter(anchor, elems)
	return nil
}

func insertSpineRefs(tree *etree.Document, afterID string, newIDs []string) (bool, error) {
	spine := markup.FindFirst(&tree.Element, "spine")
	if spine == nil {
		return false, &StructuralError{Element: "spine"}
	}

	var anchor *etree.Element
	for _, el := range spine.ChildElements() {
		if markup.LocalName(el) != "itemref" {
			continue
		}
		if idref, _ := markup.Attr(el, "idref"); idref == afterID {
			anchor = el
			break
		}
	}
	if anchor == nil {
		return false, nil
	}

	linear, _ := markup.Attr(anchor, "linear")
	if linear == "" {
		linear = "yes"
	}

	elems := make([]*etree.Element, len(newIDs))
	for i, id := range newIDs {
		el := etree.NewElement("itemref")
		el.Space = anchor.Space
		el.CreateAttr("idref", id)
		el.CreateAttr("linear", linear)
		elems[i] = el
	}
	insertAfter(anchor, elems)
	return len(elems) > 0, nil
}

// insertAfter places elems after anchor, each one after the previous, and
// repeats the indentation that precedes anchor so the output stays tidy.
func insertAfter(anchor *etree.Element, elems []*etree.Element) {
	parent := anchor.Parent()
	indent := precedingIndent(anchor)
	at := anchor.Index()
	for _, el := range elems {
		if indent != "" {
			parent.InsertChildAt(at+1, etree.NewText(indent))
			at++
		}
		parent.InsertChildAt(at+1, el)
		at = el.Index()
	}
}

func precedingIndent(el *etree.Element) string {
	i := el.Index()
	if i <= 0 {
		return ""
	}
	cd, ok := el.Parent().Child[i-1].(*etree.CharData)
	if !ok || cd.IsCData() || strings.TrimSpace(cd.Data) != "" {
		return ""
	}
	if nl := strings.LastIndex(cd.Data, "\n"); nl >= 0 {
		return cd.Data[nl:]
	}
	return ""
}
