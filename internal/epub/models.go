package epub

// OPF is a parsed package document.
type OPF struct {
	Metadata      Metadata
	Manifest      map[string]ManifestItem // id -> item
	ManifestOrder []string                // ids in document order
	Spine         []SpineItem
	NCXPath       string
}

// Metadata holds the Dublin Core fields copied into conversion reports.
type Metadata struct {
	Title      string
	Language   string
	Identifier string
}

// ManifestItem is one manifest entry. Properties holds the space-separated
// properties attribute split into words.
type ManifestItem struct {
	ID         string
	Href       string // as written in the OPF, relative to it
	Path       string // resolved path within the archive
	MediaType  string
	Properties []string
}

// SpineItem is one spine itemref. Linear is false only for linear="no".
type SpineItem struct {
	IDRef  string
	Linear bool
}

// IsXHTML reports whether the item is an XHTML content document.
func (m ManifestItem) IsXHTML() bool {
	return isXHTML(m.MediaType)
}

// Item returns the manifest item referenced by a spine entry.
func (opf *OPF) Item(idref string) (ManifestItem, bool) {
	item, ok := opf.Manifest[idref]
	return item, ok
}
