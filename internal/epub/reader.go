package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	epubMimetype    = "application/epub+zip"
	packageMimetype = "application/oebps-package+xml"
	containerPath   = "META-INF/container.xml"
)

var (
	ErrInvalidMimetype    = errors.New("epub: mimetype is not " + epubMimetype)
	ErrMimetypeCompressed = errors.New("epub: mimetype entry is compressed")
	ErrMimetypeNotFound   = errors.New("epub: mimetype entry missing")
	ErrContainerNotFound  = errors.New("epub: " + containerPath + " missing")
	ErrOPFPathNotFound    = errors.New("epub: container lists no rootfile")
	ErrFileNotFound       = errors.New("epub: entry not found")
)

// Reader gives read access to the entries of an EPUB archive. Entry names
// are normalized without a leading "./".
type Reader struct {
	zr      *zip.ReadCloser
	entries map[string]*zip.File
	names   []string
	opfPath string
}

// Open opens the archive at path, checks its mimetype entry and locates the
// package document through META-INF/container.xml.
func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	r := &Reader{zr: zr, entries: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		name := normalizePath(f.Name)
		if _, dup := r.entries[name]; !dup {
			r.names = append(r.names, name)
		}
		r.entries[name] = f
	}

	if err := r.checkMimetype(); err != nil {
		zr.Close()
		return nil, err
	}
	container, err := r.ReadFile(containerPath)
	if err != nil {
		zr.Close()
		return nil, ErrContainerNotFound
	}
	if r.opfPath, err = rootfilePath(container); err != nil {
		zr.Close()
		return nil, err
	}
	return r, nil
}

// Names lists the entries in archive order.
func (r *Reader) Names() []string {
	return r.names
}

// Has reports whether the archive holds an entry called name.
func (r *Reader) Has(name string) bool {
	_, ok := r.entries[normalizePath(name)]
	return ok
}

// Entry returns the raw zip entry, for copying without recompression.
func (r *Reader) Entry(name string) (*zip.File, bool) {
	f, ok := r.entries[normalizePath(name)]
	return f, ok
}

// OPFPath is the archive path of the package document.
func (r *Reader) OPFPath() string {
	return r.opfPath
}

// OPF parses the package document and also returns its source bytes, which
// edits are applied to.
func (r *Reader) OPF() (*OPF, []byte, error) {
	content, err := r.ReadFile(r.opfPath)
	if err != nil {
		return nil, nil, err
	}
	opf, err := ParseOPF(content, OPFDir(r.opfPath))
	if err != nil {
		return nil, nil, err
	}
	return opf, content, nil
}

// ReadFile returns the decompressed content of an entry.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	name = normalizePath(name)
	f, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (r *Reader) Close() error {
	return r.zr.Close()
}

func (r *Reader) checkMimetype() error {
	f, ok := r.entries["mimetype"]
	switch {
	case !ok:
		return ErrMimetypeNotFound
	case f.Method != zip.Store:
		return ErrMimetypeCompressed
	}
	content, err := r.ReadFile("mimetype")
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}
	if string(content) != epubMimetype {
		return ErrInvalidMimetype
	}
	return nil
}

type container struct {
	Rootfiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// rootfilePath picks the package document from container.xml: the first
// rootfile typed as a package document (or untyped), else the first one.
func rootfilePath(content []byte) (string, error) {
	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", containerPath, err)
	}
	if len(c.Rootfiles) == 0 {
		return "", ErrOPFPathNotFound
	}
	for _, rf := range c.Rootfiles {
		if rf.MediaType == packageMimetype || rf.MediaType == "" {
			return normalizePath(rf.FullPath), nil
		}
	}
	return normalizePath(c.Rootfiles[0].FullPath), nil
}

func normalizePath(name string) string {
	return strings.TrimPrefix(name, "./")
}
