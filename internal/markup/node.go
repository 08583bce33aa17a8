package markup

import (
	"strings"

	"github.com/beevik/etree"
)

// LocalName returns the lower-cased tag of el without its prefix.
func LocalName(el *etree.Element) string {
	return strings.ToLower(el.Tag)
}

// FindFirst returns the first descendant of el (depth-first, document order)
// whose local name is name.
func FindFirst(el *etree.Element, name string) *etree.Element {
	for _, child := range el.ChildElements() {
		if LocalName(child) == name {
			return child
		}
		if found := FindFirst(child, name); found != nil {
			return found
		}
	}
	return nil
}

// Attr returns the value of an unprefixed attribute.
func Attr(el *etree.Element, key string) (string, bool) {
	for _, a := range el.Attr {
		if a.Space == "" && a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// TextContent concatenates the character data below t. Subtrees for which
// skip returns true contribute nothing; skip may be nil.
func TextContent(t etree.Token, skip func(*etree.Element) bool) string {
	var sb strings.Builder
	writeText(&sb, t, skip)
	return sb.String()
}

func writeText(sb *strings.Builder, t etree.Token, skip func(*etree.Element) bool) {
	switch v := t.(type) {
	case *etree.CharData:
		sb.WriteString(v.Data)
	case *etree.Element:
		if skip != nil && skip(v) {
			return
		}
		for _, c := range v.Child {
			writeText(sb, c, skip)
		}
	}
}

// ContainsElement reports whether any descendant of el satisfies match.
func ContainsElement(el *etree.Element, match func(*etree.Element) bool) bool {
	for _, child := range el.ChildElements() {
		if match(child) || ContainsElement(child, match) {
			return true
		}
	}
	return false
}

// CopyToken returns an unparented deep copy of t.
func CopyToken(t etree.Token) etree.Token {
	switch v := t.(type) {
	case *etree.Element:
		return v.Copy()
	case *etree.CharData:
		if v.IsCData() {
			return etree.NewCData(v.Data)
		}
		return etree.NewText(v.Data)
	case *etree.Comment:
		return etree.NewComment(v.Data)
	case *etree.Directive:
		return etree.NewDirective(v.Data)
	case *etree.ProcInst:
		return etree.NewProcInst(v.Target, v.Inst)
	}
	return nil
}

// IDs returns every id attribute value at or below t, in document order.
func IDs(t etree.Token) []string {
	var ids []string
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if id, ok := Attr(el, "id"); ok && id != "" {
			ids = append(ids, id)
		}
		for _, c := range el.ChildElements() {
			walk(c)
		}
	}
	if el, ok := t.(*etree.Element); ok {
		walk(el)
	}
	return ids
}

// Walk calls fn for el and every element below it, in document order.
func Walk(el *etree.Element, fn func(*etree.Element)) {
	fn(el)
	for _, c := range el.ChildElements() {
		Walk(c, fn)
	}
}
