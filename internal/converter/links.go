package converter

import (
	"path"
	"strings"

	"github.com/beevik/etree"

	"github.com/yuanying/epubsplit/internal/epub"
	"github.com/yuanying/epubsplit/internal/markup"
)

// relocation records which part of a split chapter holds each fragment id.
type relocation struct {
	names []string       // part file names as written in the package document
	paths []string       // part archive paths
	part  map[string]int // fragment id -> part index
}

// partRef locates a document among the parts of a split chapter.
type partRef struct {
	chapter string
	index   int
}

type relocations struct {
	chapters map[string]*relocation // chapter archive path -> relocation
	owners   map[string]partRef     // part archive path -> owning chapter
}

func buildRelocations(chapters []chapter) relocations {
	rels := relocations{
		chapters: make(map[string]*relocation),
		owners:   make(map[string]partRef),
	}
	for i := range chapters {
		ch := &chapters[i]
		if !ch.isSplit() {
			continue
		}
		rel := &relocation{part: make(map[string]int)}
		for j, content := range ch.result.Contents {
			rel.names = append(rel.names, path.Base(ch.result.Filenames[j]))
			rel.paths = append(rel.paths, ch.parts[j])
			rels.owners[ch.parts[j]] = partRef{chapter: ch.item.Path, index: j}

			doc, err := markup.Parse(content)
			if err != nil {
				continue
			}
			for _, id := range markup.IDs(doc.Root()) {
				if _, seen := rel.part[id]; !seen {
					rel.part[id] = j
				}
			}
		}
		rels.chapters[ch.item.Path] = rel
	}
	return rels
}

// relocate returns the rewritten form of a link found in docPath when its
// fragment now lives in a different part.
func (r relocations) relocate(link, docPath string) (string, bool) {
	if epub.IsExternal(link) {
		return "", false
	}
	ref, frag := epub.SplitFragment(link)
	if frag == "" {
		return "", false
	}

	if ref == "" {
		own, ok := r.owners[docPath]
		if !ok {
			return "", false
		}
		rel := r.chapters[own.chapter]
		j, ok := rel.part[frag]
		if !ok || j == own.index {
			return "", false
		}
		return rel.names[j] + "#" + frag, true
	}

	rel, ok := r.chapters[epub.ResolvePath(path.Dir(docPath), ref)]
	if !ok {
		return "", false
	}
	j, ok := rel.part[frag]
	if !ok || j == 0 {
		return "", false
	}
	return replaceBase(ref, rel.names[j]) + "#" + frag, true
}

// replaceBase swaps the last path segment of ref for name.
func replaceBase(ref, name string) string {
	return ref[:strings.LastIndex(ref, "/")+1] + name
}

// rewriteLinks repairs fragment links whose target moved to a later part,
// in every XHTML document and in the NCX. Rewritten documents are stored in
// docs; the number of rewritten links is returned.
func (p *Pipeline) rewriteLinks(reader *epub.Reader, pkg *epub.OPF, chapters []chapter, docs map[string]string) int {
	rels := buildRelocations(chapters)
	if len(rels.chapters) == 0 {
		return 0
	}

	total := 0
	for _, id := range pkg.ManifestOrder {
		item := pkg.Manifest[id]

		switch {
		case item.IsXHTML():
			paths := []string{item.Path}
			if rel, ok := rels.chapters[item.Path]; ok {
				paths = rel.paths
			}
			for _, docPath := range paths {
				total += p.rewriteDocument(reader, docPath, docs, rels.rewriteXHTML)
			}
		case item.Path == pkg.NCXPath:
			total += p.rewriteDocument(reader, item.Path, docs, rels.rewriteNCX)
		}
	}
	return total
}

type rewriteFunc func(content, docPath string) (string, int, error)

func (p *Pipeline) rewriteDocument(reader *epub.Reader, docPath string, docs map[string]string, rewrite rewriteFunc) int {
	content, ok := docs[docPath]
	if !ok {
		data, err := reader.ReadFile(docPath)
		if err != nil {
			p.logger.Debug("link rewrite skipped", "path", docPath, "error", err)
			return 0
		}
		content = string(data)
	}
	if !strings.Contains(content, "#") {
		return 0
	}

	out, n, err := rewrite(content, docPath)
	if err != nil {
		p.logger.Warn("link rewrite skipped", "path", docPath, "error", err)
		return 0
	}
	if n > 0 {
		docs[docPath] = out
		p.logger.Debug("links rewritten", "path", docPath, "count", n)
	}
	return n
}

// rewriteXHTML rewrites href attributes of any element, prefixed or not.
func (r relocations) rewriteXHTML(content, docPath string) (string, int, error) {
	doc, err := markup.Parse(content)
	if err != nil {
		return "", 0, err
	}
	n := r.rewriteAttrs(doc.Root(), docPath, func(el *etree.Element, a *etree.Attr) bool {
		return a.Key == "href"
	})
	if n == 0 {
		return content, 0, nil
	}
	out, err := doc.Serialize()
	if err != nil {
		return "", 0, err
	}
	return out, n, nil
}

// rewriteNCX rewrites the src attribute of navigation content elements.
func (r relocations) rewriteNCX(content, docPath string) (string, int, error) {
	tree, err := markup.ParseXML(content)
	if err != nil {
		return "", 0, err
	}
	n := r.rewriteAttrs(tree.Root(), docPath, func(el *etree.Element, a *etree.Attr) bool {
		return a.Space == "" && a.Key == "src" && markup.LocalName(el) == "content"
	})
	if n == 0 {
		return content, 0, nil
	}
	out, err := markup.WriteXML(tree)
	if err != nil {
		return "", 0, err
	}
	return out, n, nil
}

func (r relocations) rewriteAttrs(root *etree.Element, docPath string, match func(*etree.Element, *etree.Attr) bool) int {
	n := 0
	markup.Walk(root, func(el *etree.Element) {
		for i := range el.Attr {
			a := &el.Attr[i]
			if !match(el, a) {
				continue
			}
			if v, ok := r.relocate(a.Value, docPath); ok {
				a.Value = v
				n++
			}
		}
	})
	return n
}
