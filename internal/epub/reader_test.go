package epub

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const testContainer = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testPackage = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="chapter1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="chapter1"/>
  </spine>
</package>`

// archiveEntry is one zip entry, deflated unless stored is set.
type archiveEntry struct {
	name    string
	content string
	stored  bool
}

func mimetypeEntry(content string) archiveEntry {
	return archiveEntry{name: "mimetype", content: content, stored: true}
}

// writeArchive writes entries, in order, to dir/name.
func writeArchive(t *testing.T, dir, name string, entries ...archiveEntry) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		method := zip.Deflate
		if e.stored {
			method = zip.Store
		}
		ew, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		if err != nil {
			t.Fatalf("failed to create entry %s: %v", e.name, err)
		}
		ew.Write([]byte(e.content))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to finalize %s: %v", name, err)
	}
	return path
}

// createTestEPUB writes a one-chapter EPUB.
func createTestEPUB(t *testing.T, dir string) string {
	t.Helper()
	return writeArchive(t, dir, "test.epub",
		mimetypeEntry("application/epub+zip"),
		archiveEntry{name: "META-INF/container.xml", content: testContainer},
		archiveEntry{name: "OEBPS/content.opf", content: testPackage},
		archiveEntry{name: "OEBPS/chapter1.xhtml", content: `<html xmlns="http://www.w3.org/1999/xhtml"><body><p>Hello</p></body></html>`},
	)
}

func openTestEPUB(t *testing.T) *Reader {
	t.Helper()
	reader, err := Open(createTestEPUB(t, t.TempDir()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { reader.Close() })
	return reader
}

func TestOpen_Errors(t *testing.T) {
	container := archiveEntry{name: "META-INF/container.xml", content: testContainer}
	tests := []struct {
		name    string
		entries []archiveEntry
		want    error
	}{
		{"no mimetype", []archiveEntry{container}, ErrMimetypeNotFound},
		{"wrong mimetype", []archiveEntry{mimetypeEntry("text/plain"), container}, ErrInvalidMimetype},
		{"compressed mimetype", []archiveEntry{{name: "mimetype", content: "application/epub+zip"}, container}, ErrMimetypeCompressed},
		{"no container", []archiveEntry{mimetypeEntry("application/epub+zip")}, ErrContainerNotFound},
		{"no rootfile", []archiveEntry{
			mimetypeEntry("application/epub+zip"),
			{name: "META-INF/container.xml", content: `<container><rootfiles></rootfiles></container>`},
		}, ErrOPFPathNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArchive(t, t.TempDir(), "book.epub", tt.entries...)
			if _, err := Open(path); !errors.Is(err, tt.want) {
				t.Fatalf("Open() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpen_NotAnArchive(t *testing.T) {
	if _, err := Open("/nonexistent/file.epub"); err == nil {
		t.Fatal("Open() should fail for a missing file")
	}

	path := filepath.Join(t.TempDir(), "plain.epub")
	os.WriteFile(path, []byte("not a zip"), 0o644)
	if _, err := Open(path); err == nil {
		t.Fatal("Open() should fail for a non-zip file")
	}
}

func TestOpen_RootfileSelection(t *testing.T) {
	tests := []struct {
		name      string
		container string
		want      string
	}{
		{
			"normalized",
			`<container><rootfiles><rootfile full-path="./OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`,
			"OEBPS/content.opf",
		},
		{
			"package type preferred",
			`<container><rootfiles><rootfile full-path="book.pdf" media-type="application/pdf"/><rootfile full-path="pkg.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`,
			"pkg.opf",
		},
		{
			"first when untyped match missing",
			`<container><rootfiles><rootfile full-path="a.opf" media-type="text/xml"/><rootfile full-path="b.opf" media-type="text/xml"/></rootfiles></container>`,
			"a.opf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArchive(t, t.TempDir(), "book.epub",
				mimetypeEntry("application/epub+zip"),
				archiveEntry{name: "META-INF/container.xml", content: tt.container},
			)
			reader, err := Open(path)
			if err != nil {
				t.Fatalf("Open() failed: %v", err)
			}
			defer reader.Close()
			if got := reader.OPFPath(); got != tt.want {
				t.Errorf("OPFPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReader_Entries(t *testing.T) {
	reader := openTestEPUB(t)

	want := []string{
		"mimetype",
		"META-INF/container.xml",
		"OEBPS/content.opf",
		"OEBPS/chapter1.xhtml",
	}
	if !reflect.DeepEqual(reader.Names(), want) {
		t.Errorf("Names() = %v, want %v", reader.Names(), want)
	}
	if !reader.Has("./OEBPS/chapter1.xhtml") || reader.Has("OEBPS/chapter2.xhtml") {
		t.Error("Has() disagrees with the archive contents")
	}
	if f, ok := reader.Entry("mimetype"); !ok || f.Method != zip.Store {
		t.Errorf("Entry(mimetype) = %v, %v", f, ok)
	}

	content, err := reader.ReadFile("mimetype")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if string(content) != "application/epub+zip" {
		t.Errorf("ReadFile() = %q", content)
	}
	if _, err := reader.ReadFile("nonexistent.txt"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("ReadFile() error = %v, want ErrFileNotFound", err)
	}
}

func TestReader_OPF(t *testing.T) {
	reader := openTestEPUB(t)

	opf, raw, err := reader.OPF()
	if err != nil {
		t.Fatalf("OPF() failed: %v", err)
	}
	if string(raw) != testPackage {
		t.Error("OPF() did not return the package source")
	}
	if opf.Metadata.Title != "Test Book" || opf.Metadata.Language != "en" {
		t.Errorf("Metadata = %+v", opf.Metadata)
	}
	item, ok := opf.Item("chapter1")
	if !ok {
		t.Fatal("chapter1 not in manifest")
	}
	if item.Path != "OEBPS/chapter1.xhtml" {
		t.Errorf("chapter1.Path = %q, want %q", item.Path, "OEBPS/chapter1.xhtml")
	}
	if len(opf.Spine) != 1 || !opf.Spine[0].Linear {
		t.Errorf("Spine = %+v", opf.Spine)
	}
}
