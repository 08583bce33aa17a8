package splitter

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/yuanying/epubsplit/internal/markup"
)

// ContentType classifies a direct child of the content root.
type ContentType string

const (
	TypeText       ContentType = "text"
	TypeImage      ContentType = "image"
	TypeWhitespace ContentType = "whitespace"
)

// mediaTags are the elements that count as images.
var mediaTags = map[string]bool{
	"img": true,
	"svg": true,
}

// ContentBlock is a maximal run of sibling nodes sharing one content type.
// Nodes also holds the whitespace text, whitespace-only elements and
// comments between its typed nodes.
type ContentBlock struct {
	Type  ContentType
	Nodes []etree.Token
}

func isMedia(el *etree.Element) bool {
	return mediaTags[markup.LocalName(el)]
}

// Classify returns the content type of a node.
func Classify(t etree.Token) ContentType {
	switch v := t.(type) {
	case *etree.CharData:
		if strings.TrimSpace(v.Data) != "" {
			return TypeText
		}
	case *etree.Element:
		if isMedia(v) {
			return TypeImage
		}
		if !markup.ContainsElement(v, isMedia) {
			if strings.TrimSpace(markup.TextContent(v, nil)) != "" {
				return TypeText
			}
			return TypeWhitespace
		}
		if strings.TrimSpace(markup.TextContent(v, isMedia)) != "" {
			return TypeText
		}
		return TypeImage
	}
	return TypeWhitespace
}

// LocateContentRoot unwraps a body whose only element child is a <div> with
// no text beside it. Otherwise the body itself is the content root.
func LocateContentRoot(body *etree.Element) *etree.Element {
	if body == nil {
		return nil
	}

	var only *etree.Element
	for _, tok := range body.Child {
		switch v := tok.(type) {
		case *etree.Element:
			if only != nil {
				return body
			}
			only = v
		case *etree.CharData:
			if strings.TrimSpace(v.Data) != "" {
				return body
			}
		}
	}

	if only != nil && markup.LocalName(only) == "div" {
		return only
	}
	return body
}

// contentBlocks groups the children of root into blocks. significant counts
// the children that are not whitespace. Whitespace text between nodes of one
// block is kept; at block edges it is dropped.
func contentBlocks(root *etree.Element) (blocks []ContentBlock, significant int) {
	if root == nil {
		return nil, 0
	}

	var carried []etree.Token
	for _, tok := range root.Child {
		switch v := tok.(type) {
		case *etree.CharData:
			if strings.TrimSpace(v.Data) == "" {
				carried = append(carried, tok)
				continue
			}
		case *etree.Comment:
			carried = append(carried, tok)
			continue
		case *etree.Element:
		default:
			continue
		}

		typ := Classify(tok)
		if typ == TypeWhitespace {
			carried = append(carried, tok)
			continue
		}
		significant++

		if len(blocks) == 0 || blocks[len(blocks)-1].Type != typ {
			blocks = append(blocks, ContentBlock{Type: typ})
			carried = trimSpace(carried, true)
		}
		last := &blocks[len(blocks)-1]
		last.Nodes = append(last.Nodes, carried...)
		last.Nodes = append(last.Nodes, tok)
		carried = nil
	}

	if carried = trimSpace(carried, false); len(carried) > 0 && len(blocks) > 0 {
		last := &blocks[len(blocks)-1]
		last.Nodes = append(last.Nodes, carried...)
	}
	return blocks, significant
}

func isSpace(t etree.Token) bool {
	cd, ok := t.(*etree.CharData)
	return ok && strings.TrimSpace(cd.Data) == ""
}

// trimSpace drops whitespace text from the start (leading) or end of tokens.
func trimSpace(tokens []etree.Token, leading bool) []etree.Token {
	if leading {
		for len(tokens) > 0 && isSpace(tokens[0]) {
			tokens = tokens[1:]
		}
		return tokens
	}
	for len(tokens) > 0 && isSpace(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}
