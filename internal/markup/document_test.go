package markup

import (
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"
)

const wellFormedChapter = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Chapter 1</title></head>
<body>
  <p>Hello&nbsp;world</p>
  <p epub:type="footnote">Note</p>
</body>
</html>`

func TestParse_StrictXHTML(t *testing.T) {
	doc, err := Parse(wellFormedChapter)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if doc.Lenient() {
		t.Fatal("well-formed XHTML should be accepted by the strict parser")
	}
	if doc.Body() == nil {
		t.Fatal("Body() = nil")
	}

	p := FindFirst(doc.Body(), "p")
	if got := TextContent(p, nil); got != "Hello\u00a0world" {
		t.Errorf("TextContent = %q, want %q", got, "Hello\u00a0world")
	}
}

func TestParse_PreservesNamespacesOnRoundTrip(t *testing.T) {
	doc, err := Parse(wellFormedChapter)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<!DOCTYPE html>`,
		`xmlns="http://www.w3.org/1999/xhtml"`,
		`xmlns:epub="http://www.idpf.org/2007/ops"`,
		`epub:type="footnote"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("serialized output missing %q:\n%s", want, out)
		}
	}
}

func TestParse_FallsBackToLenient(t *testing.T) {
	src := `<html><head><title>x</title></head><body><p>one<br><p>two &amp; three</body></html>`

	if _, err := ParseStrict(src); err == nil {
		t.Fatal("ParseStrict should reject unclosed tags")
	}

	doc, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !doc.Lenient() {
		t.Fatal("expected lenient fallback")
	}

	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if !strings.Contains(out, `xmlns="http://www.w3.org/1999/xhtml"`) {
		t.Errorf("lenient output should declare the XHTML namespace:\n%s", out)
	}

	// The recovered tree must serialize as well-formed XML.
	again, err := ParseStrict(out)
	if err != nil {
		t.Fatalf("lenient output is not well-formed: %v\n%s", err, out)
	}
	if got := strings.TrimSpace(TextContent(again.Body(), nil)); got != "onetwo & three" {
		t.Errorf("body text = %q", got)
	}
}

func TestParse_MissingBodyFallsBack(t *testing.T) {
	doc, err := Parse(`<section><p>fragment</p></section>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !doc.Lenient() {
		t.Fatal("a well-formed fragment without body should be recovered leniently")
	}
	if got := TextContent(doc.Body(), nil); got != "fragment" {
		t.Errorf("body text = %q, want %q", got, "fragment")
	}
}

func TestParseLenient_DeclaresForeignNamespaces(t *testing.T) {
	src := `<html><body><p>a<br></p><svg viewBox="0 0 10 10"><image xlink:href="cover.jpg"/></svg></body></html>`

	doc, err := ParseLenient(src)
	if err != nil {
		t.Fatalf("ParseLenient failed: %v", err)
	}
	svg := FindFirst(doc.Body(), "svg")
	if svg == nil {
		t.Fatal("svg element not found")
	}
	if got := svg.SelectAttrValue("xmlns", ""); got != NamespaceSVG {
		t.Errorf("svg xmlns = %q, want %q", got, NamespaceSVG)
	}
	if got := svg.SelectAttrValue("xmlns:xlink", ""); got != NamespaceXLink {
		t.Errorf("svg xmlns:xlink = %q, want %q", got, NamespaceXLink)
	}
	image := FindFirst(svg, "image")
	if got := image.SelectAttrValue("xlink:href", ""); got != "cover.jpg" {
		t.Errorf("image xlink:href = %q, want %q", got, "cover.jpg")
	}
}

func TestParseLenient_DropsInvalidNames(t *testing.T) {
	src := `<html><body><p foo"bar=1 class="x" 1st=2>text</p><q"x>inner</q"x></body></html>`

	doc, err := ParseLenient(src)
	if err != nil {
		t.Fatalf("ParseLenient failed: %v", err)
	}
	out, err := doc.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	reparsed, err := ParseStrict(out)
	if err != nil {
		t.Fatalf("output is not well-formed: %v\n%s", err, out)
	}
	p := FindFirst(reparsed.Body(), "p")
	if p == nil {
		t.Fatal("p element not found")
	}
	if len(p.Attr) != 1 || p.SelectAttrValue("class", "") != "x" {
		t.Errorf("p attributes = %v, want only class", p.Attr)
	}
	if got := TextContent(reparsed.Body(), nil); got != "textinner" {
		t.Errorf("body text = %q, want %q", got, "textinner")
	}
}

func TestParseLenient_RejectsBinary(t *testing.T) {
	src := "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01"

	if _, err := ParseLenient(src); !errors.Is(err, ErrParse) {
		t.Fatalf("error = %v, want %v", err, ErrParse)
	}
	if _, err := Parse(src); err == nil {
		t.Fatal("expected Parse to fail on binary input")
	}
}

func TestIsXMLName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"class", true},
		{"data-id", true},
		{"epub:type", true},
		{"_x.1", true},
		{"", false},
		{`foo"bar`, false},
		{"1st", false},
		{"a:b:c", false},
		{":a", false},
		{"a:-b", false},
		{"a=b", false},
	}
	for _, tt := range tests {
		if got := isXMLName(tt.name); got != tt.want {
			t.Errorf("isXMLName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseXML_DecodesDeclaredCharset(t *testing.T) {
	src := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><package><title>caf\xe9</title></package>"

	tree, err := ParseXML(src)
	if err != nil {
		t.Fatalf("ParseXML failed: %v", err)
	}
	if got := tree.Root().SelectElement("title").Text(); got != "café" {
		t.Errorf("title = %q, want %q", got, "café")
	}

	out, err := WriteXML(tree)
	if err != nil {
		t.Fatalf("WriteXML failed: %v", err)
	}
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Errorf("declaration not re-declared as UTF-8: %q", out)
	}
}

func TestParseXML_RejectsMalformed(t *testing.T) {
	if _, err := ParseXML(`<package><manifest></package>`); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := ParseXML(`   `); err == nil {
		t.Fatal("expected error for document without root")
	}
}

func TestWriteXML_Declaration(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing", `<package><manifest/></package>`},
		{"present", `<?xml version="1.0" encoding="UTF-8"?><package><manifest/></package>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := ParseXML(tt.src)
			if err != nil {
				t.Fatalf("ParseXML failed: %v", err)
			}
			out, err := WriteXML(tree)
			if err != nil {
				t.Fatalf("WriteXML failed: %v", err)
			}
			if !strings.HasPrefix(out, "<?xml") {
				t.Errorf("output lacks declaration: %q", out)
			}
			if n := strings.Count(out, "<?xml"); n != 1 {
				t.Errorf("declaration count = %d, want 1", n)
			}
		})
	}
}

func TestClone_SharesNothing(t *testing.T) {
	doc, err := Parse(wellFormedChapter)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	clone := doc.Clone()
	body := clone.Body()
	for i := len(body.Child) - 1; i >= 0; i-- {
		body.RemoveChildAt(i)
	}
	if len(doc.Body().ChildElements()) != 2 {
		t.Fatal("clearing the clone modified the original")
	}
}

func TestCopyToken(t *testing.T) {
	parent := etree.NewElement("div")
	cdata := parent.CreateCData("a < b")
	comment := parent.CreateComment("note")

	c := CopyToken(cdata).(*etree.CharData)
	if !c.IsCData() || c.Data != "a < b" || c.Parent() != nil {
		t.Errorf("CDATA copy = %+v", c)
	}
	m := CopyToken(comment).(*etree.Comment)
	if m.Data != "note" || m.Parent() != nil {
		t.Errorf("comment copy = %+v", m)
	}
}

func TestTextContent_Skip(t *testing.T) {
	doc, err := Parse(`<html><body><div>Caption<img src="a.png"/><svg xmlns="http://www.w3.org/2000/svg"><text>label</text></svg></div></body></html>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	div := FindFirst(doc.Body(), "div")
	skipSVG := func(el *etree.Element) bool { return LocalName(el) == "svg" }

	if got := TextContent(div, nil); got != "Captionlabel" {
		t.Errorf("TextContent = %q, want %q", got, "Captionlabel")
	}
	if got := TextContent(div, skipSVG); got != "Caption" {
		t.Errorf("TextContent(skip svg) = %q, want %q", got, "Caption")
	}
}

func TestIDs(t *testing.T) {
	doc, err := Parse(`<html><body><div id="a"><p id="b">x</p><p>y</p><span id="c"/></div></body></html>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got := IDs(FindFirst(doc.Body(), "div"))
	want := []string{"a", "b", "c"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("IDs = %v, want %v", got, want)
	}
}
