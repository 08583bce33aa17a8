package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// Mimetype is the content of the mandatory mimetype entry.
const Mimetype = "application/epub+zip"

// Writer creates an EPUB archive. The mimetype entry is written first and
// stored uncompressed.
type Writer struct {
	file    *os.File
	zw      *zip.Writer
	written map[string]bool
}

// Create creates the archive at path and writes the mimetype entry.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create EPUB: %w", err)
	}

	w := &Writer{
		file:    f,
		zw:      zip.NewWriter(f),
		written: make(map[string]bool),
	}

	mw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err == nil {
		_, err = io.WriteString(mw, Mimetype)
	}
	if err != nil {
		w.zw.Close()
		f.Close()
		return nil, fmt.Errorf("failed to write mimetype: %w", err)
	}
	w.written["mimetype"] = true

	return w, nil
}

// WriteFile adds a deflated entry with the given content.
func (w *Writer) WriteFile(name string, content []byte) error {
	if w.written[name] {
		return nil
	}
	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := fw.Write(content); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	w.written[name] = true
	return nil
}

// CopyFile copies an entry from a source archive without recompressing it.
func (w *Writer) CopyFile(f *zip.File) error {
	name := normalizePath(f.Name)
	if w.written[name] {
		return nil
	}
	if err := w.zw.Copy(f); err != nil {
		return fmt.Errorf("failed to copy %s: %w", name, err)
	}
	w.written[name] = true
	return nil
}

// Close finishes the archive.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalize EPUB: %w", err)
	}
	return w.file.Close()
}
