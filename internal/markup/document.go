package markup

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

// Sentinel errors returned by the markup package.
var (
	// ErrParse indicates the source could not be parsed by any parser.
	ErrParse = errors.New("markup: parse failed")

	// ErrNoBody indicates a chapter document has no <body> element.
	ErrNoBody = errors.New("markup: document has no body")
)

// XMLDeclaration is prepended to serialized XML that lacks one.
const XMLDeclaration = `<?xml version="1.0" encoding="UTF-8"?>`

// Namespaces used when lenient input has to be expressed as XML.
const (
	NamespaceXHTML  = "http://www.w3.org/1999/xhtml"
	NamespaceSVG    = "http://www.w3.org/2000/svg"
	NamespaceMathML = "http://www.w3.org/1998/Math/MathML"
	NamespaceXLink  = "http://www.w3.org/1999/xlink"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// declEncodingRe matches the encoding pseudo-attribute of an XML declaration.
var declEncodingRe = regexp.MustCompile(`encoding\s*=\s*("[^"]*"|'[^']*')`)

// Document is a parsed chapter: a single XML tree regardless of which
// parser accepted the source.
type Document struct {
	tree    *etree.Document
	lenient bool
}

// Parse parses a chapter as XML and falls back to lenient HTML parsing when
// the source is not well-formed or has no body.
func Parse(src string) (*Document, error) {
	doc, strictErr := ParseStrict(src)
	if strictErr == nil {
		return doc, nil
	}

	doc, err := ParseLenient(src)
	if err != nil {
		return nil, fmt.Errorf("%w: strict: %v; lenient: %v", ErrParse, strictErr, err)
	}
	return doc, nil
}

// ParseStrict parses a chapter as well-formed XML. HTML named entities are
// accepted, since XHTML chapters routinely use them.
func ParseStrict(src string) (*Document, error) {
	tree, err := ParseXML(src)
	if err != nil {
		return nil, err
	}
	doc := &Document{tree: tree}
	if doc.Body() == nil {
		return nil, ErrNoBody
	}
	return doc, nil
}

// ParseLenient parses a chapter with an HTML5 parser and converts the result
// into an XML tree.
func ParseLenient(src string) (*Document, error) {
	tree, err := parseHTML(src)
	if err != nil {
		return nil, err
	}
	doc := &Document{tree: tree, lenient: true}
	if doc.Body() == nil {
		return nil, ErrNoBody
	}
	return doc, nil
}

// ParseXML parses a well-formed XML document such as a package document.
// A declared non-UTF-8 encoding is decoded and re-declared as UTF-8, because
// serialization always produces UTF-8.
func ParseXML(src string) (*etree.Document, error) {
	data := bytes.TrimPrefix([]byte(src), utf8BOM)

	tree := etree.NewDocument()
	tree.ReadSettings.Entity = xml.HTMLEntity
	tree.ReadSettings.CharsetReader = charset.NewReaderLabel
	tree.ReadSettings.ValidateInput = true
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if tree.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrParse)
	}

	for _, tok := range tree.Child {
		pi, ok := tok.(*etree.ProcInst)
		if !ok || pi.Target != "xml" {
			continue
		}
		if m := declEncodingRe.FindStringSubmatch(pi.Inst); m != nil {
			enc := strings.ToLower(strings.Trim(m[1], `"'`))
			if enc != "utf-8" && enc != "utf8" {
				pi.Inst = declEncodingRe.ReplaceAllString(pi.Inst, `encoding="UTF-8"`)
			}
		}
	}

	return tree, nil
}

// WriteXML serializes an XML tree, guaranteeing an XML declaration.
func WriteXML(tree *etree.Document) (string, error) {
	out, err := tree.WriteToString()
	if err != nil {
		return "", fmt.Errorf("markup: serialize: %w", err)
	}
	if !strings.HasPrefix(out, "<?xml") {
		out = XMLDeclaration + "\n" + out
	}
	return out, nil
}

// Tree returns the underlying XML tree.
func (d *Document) Tree() *etree.Document {
	return d.tree
}

// Lenient reports whether the document was recovered by the HTML parser.
func (d *Document) Lenient() bool {
	return d.lenient
}

// Root returns the document element.
func (d *Document) Root() *etree.Element {
	return d.tree.Root()
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *etree.Element {
	return FindFirst(&d.tree.Element, "body")
}

// Clone returns a deep copy sharing no nodes with d.
func (d *Document) Clone() *Document {
	return &Document{tree: d.tree.Copy(), lenient: d.lenient}
}

// Serialize renders the document as XML text. Strictly parsed documents keep
// their original prolog; nothing is synthesized for chapters.
func (d *Document) Serialize() (string, error) {
	out, err := d.tree.WriteToString()
	if err != nil {
		return "", fmt.Errorf("markup: serialize: %w", err)
	}
	return out, nil
}

// decodeLegacy converts a non-UTF-8 HTML source using its meta charset.
func decodeLegacy(src string) (io.Reader, error) {
	if utf8.ValidString(src) {
		return strings.NewReader(src), nil
	}
	return charset.NewReader(strings.NewReader(src), "text/html")
}
