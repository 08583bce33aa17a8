package markup

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// foreignNamespaces maps the x/net/html foreign namespace names to URIs.
var foreignNamespaces = map[string]string{
	"svg":  NamespaceSVG,
	"math": NamespaceMathML,
}

// parseHTML parses src with the HTML5 algorithm and rebuilds the node tree
// as XML, declaring the namespaces an XML serializer would need.
func parseHTML(src string) (*etree.Document, error) {
	r, err := decodeLegacy(src)
	if err != nil {
		return nil, fmt.Errorf("markup: decode charset: %w", err)
	}

	text, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("markup: decode charset: %w", err)
	}
	// NUL never occurs in text markup; it marks binary data.
	if strings.ContainsRune(string(text), 0) {
		return nil, fmt.Errorf("%w: source contains NUL characters", ErrParse)
	}

	root, err := html.Parse(strings.NewReader(string(text)))
	if err != nil {
		return nil, fmt.Errorf("markup: parse HTML: %w", err)
	}

	tree := etree.NewDocument()
	for n := root.FirstChild; n != nil; n = n.NextSibling {
		convertNode(&tree.Element, n)
	}
	return tree, nil
}

func convertNode(parent *etree.Element, n *html.Node) {
	switch n.Type {
	case html.DoctypeNode:
		parent.CreateDirective("DOCTYPE " + n.Data)
	case html.CommentNode:
		// An XML declaration read by an HTML parser surfaces as a bogus comment.
		if strings.HasPrefix(n.Data, "?xml") {
			return
		}
		parent.CreateComment(n.Data)
	case html.TextNode:
		parent.CreateText(n.Data)
	case html.ElementNode:
		// Elements whose tag is not an XML name are unwrapped.
		if !isXMLName(n.Data) {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				convertNode(parent, c)
			}
			return
		}
		el := parent.CreateElement(n.Data)
		for _, a := range n.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			if !isXMLName(key) || el.SelectAttr(key) != nil {
				continue
			}
			el.CreateAttr(key, a.Val)
		}
		declareNamespaces(el, n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			convertNode(el, c)
		}
	}
}

// declareNamespaces adds the default namespace on <html> and on the roots of
// embedded SVG or MathML islands.
func declareNamespaces(el *etree.Element, n *html.Node) {
	switch {
	case n.Namespace == "" && n.Data == "html":
		if el.SelectAttr("xmlns") == nil {
			el.CreateAttr("xmlns", NamespaceXHTML)
		}
	case n.Namespace != "" && (n.Parent == nil || n.Parent.Namespace != n.Namespace):
		if uri, ok := foreignNamespaces[n.Namespace]; ok && el.SelectAttr("xmlns") == nil {
			el.CreateAttr("xmlns", uri)
		}
		if usesXLink(n) && el.SelectAttr("xmlns:xlink") == nil {
			el.CreateAttr("xmlns:xlink", NamespaceXLink)
		}
	}
}

func usesXLink(n *html.Node) bool {
	for _, a := range n.Attr {
		if a.Namespace == "xlink" {
			return true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && usesXLink(c) {
			return true
		}
	}
	return false
}

// isXMLName reports whether s can be written as an element or attribute
// name. Colons are allowed only as a single prefix separator.
func isXMLName(s string) bool {
	if s == "" || strings.Count(s, ":") > 1 || strings.HasPrefix(s, ":") || strings.HasSuffix(s, ":") {
		return false
	}
	start := true
	for _, r := range s {
		switch {
		case r == ':':
			start = true
			continue
		case r == '_' || unicode.IsLetter(r):
		case !start && (r == '-' || r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
		start = false
	}
	return true
}
