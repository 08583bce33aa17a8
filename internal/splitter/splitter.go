// Package splitter decides whether an XHTML chapter should be split and
// splits it at the boundaries between runs of text and runs of images.
package splitter

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/yuanying/epubsplit/internal/markup"
)

// SkipReason explains why a chapter was left as it is.
type SkipReason string

const (
	ReasonExempt        SkipReason = "file-exempt"
	ReasonNoSplitNeeded SkipReason = "no-split-needed"
	ReasonNotBeneficial SkipReason = "split-not-beneficial"
)

// Options configures a Splitter.
type Options struct {
	// ExemptNames lists base file names that are never split.
	// Nil selects DefaultExemptNames; an empty non-nil slice exempts nothing.
	ExemptNames []string
	Logger      *slog.Logger
}

// Result is the outcome of processing one chapter.
//
// When Skipped is false and Success is true, Contents and Filenames have the
// same length and Filenames[0] equals OriginalFilename. In every other case
// the caller keeps OriginalContent.
type Result struct {
	Success          bool       `json:"success"`
	Skipped          bool       `json:"skipped"`
	Reason           SkipReason `json:"reason,omitempty"`
	Error            string     `json:"error,omitempty"`
	Contents         []string   `json:"contents,omitempty"`
	Filenames        []string   `json:"filenames,omitempty"`
	OriginalFilename string     `json:"originalFilename"`
	OriginalContent  string     `json:"-"`
}

// Parts returns the number of documents the chapter became.
func (r Result) Parts() int {
	if !r.Success || r.Skipped {
		return 1
	}
	return len(r.Contents)
}

// Splitter splits chapters. It holds only configuration and is safe for
// concurrent use.
type Splitter struct {
	exempt map[string]bool
	logger *slog.Logger
	split  func(*markup.Document, []ContentBlock) ([]string, error)
}

// New creates a Splitter.
func New(opts Options) *Splitter {
	names := opts.ExemptNames
	if names == nil {
		names = DefaultExemptNames
	}
	exempt := make(map[string]bool, len(names))
	for _, n := range names {
		exempt[n] = true
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Splitter{exempt: exempt, logger: logger, split: splitBlocks}
}

// IsExempt reports whether the base name of filename is on the allow-list.
func (s *Splitter) IsExempt(filename string) bool {
	return s.exempt[baseName(filename)]
}

// NeedsSplitting reports whether document has at least two content blocks.
// Unparseable documents never need splitting.
func (s *Splitter) NeedsSplitting(document string) bool {
	doc, err := s.parse(document)
	if err != nil {
		return false
	}
	blocks, significant := contentBlocks(LocateContentRoot(doc.Body()))
	return needsSplitting(blocks, significant)
}

// Blocks returns the content blocks of document in document order.
func (s *Splitter) Blocks(document string) ([]ContentBlock, error) {
	doc, err := s.parse(document)
	if err != nil {
		return nil, err
	}
	blocks, _ := contentBlocks(LocateContentRoot(doc.Body()))
	return blocks, nil
}

// Split returns one serialized document per content block, in document
// order. An empty slice means no split was performed.
func (s *Splitter) Split(document string) ([]string, error) {
	doc, err := s.parse(document)
	if err != nil {
		return nil, err
	}
	blocks, _ := contentBlocks(LocateContentRoot(doc.Body()))
	return s.split(doc, blocks)
}

// Process analyzes and, when warranted, splits one chapter. It never panics
// and never returns partial output: on failure the original content is
// carried in the result.
func (s *Splitter) Process(document, filename string) (res Result) {
	res = Result{
		Success:          true,
		OriginalFilename: filename,
		OriginalContent:  document,
	}
	defer func() {
		if r := recover(); r != nil {
			res = failure(document, filename, fmt.Errorf("unexpected failure: %v", r))
			s.logger.Warn("chapter processing failed", "file", filename, "error", res.Error)
		}
	}()

	if s.IsExempt(filename) {
		s.logger.Debug("chapter exempt", "file", filename)
		return skipped(res, ReasonExempt)
	}

	doc, err := s.parse(document)
	if err != nil {
		s.logger.Warn("chapter not parseable", "file", filename, "error", err)
		return failure(document, filename, err)
	}

	blocks, significant := contentBlocks(LocateContentRoot(doc.Body()))
	if !needsSplitting(blocks, significant) {
		s.logger.Debug("chapter needs no split", "file", filename, "blocks", len(blocks))
		return skipped(res, ReasonNoSplitNeeded)
	}

	parts, err := s.split(doc, blocks)
	if err != nil {
		s.logger.Warn("chapter split failed", "file", filename, "error", err)
		return failure(document, filename, err)
	}
	if len(parts) <= 1 {
		return skipped(res, ReasonNotBeneficial)
	}

	res.Contents = parts
	res.Filenames = FilenamesFor(filename, len(parts))
	s.logger.Debug("chapter split", "file", filename, "parts", len(parts), "lenient", doc.Lenient())
	return res
}

func (s *Splitter) parse(document string) (*markup.Document, error) {
	doc, err := markup.Parse(document)
	if err != nil {
		return nil, err
	}
	if doc.Lenient() {
		s.logger.Debug("strict parse failed, recovered with HTML parser")
	}
	return doc, nil
}

func needsSplitting(blocks []ContentBlock, significant int) bool {
	return len(blocks) >= 2 && significant >= 2
}

// splitBlocks builds one document per block: a deep copy of doc whose
// content root holds copies of that block's nodes only.
func splitBlocks(doc *markup.Document, blocks []ContentBlock) ([]string, error) {
	if len(blocks) < 2 {
		return nil, nil
	}

	parts := make([]string, 0, len(blocks))
	for i, block := range blocks {
		part := doc.Clone()
		root := LocateContentRoot(part.Body())
		if root == nil {
			return nil, fmt.Errorf("part %d: %w", i, markup.ErrNoBody)
		}
		for j := len(root.Child) - 1; j >= 0; j-- {
			root.RemoveChildAt(j)
		}
		for _, n := range block.Nodes {
			root.AddChild(markup.CopyToken(n))
		}

		out, err := part.Serialize()
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, out)
	}
	return parts, nil
}

func skipped(res Result, reason SkipReason) Result {
	res.Skipped = true
	res.Reason = reason
	return res
}

func failure(document, filename string, err error) Result {
	return Result{
		Success:          false,
		Error:            err.Error(),
		OriginalFilename: filename,
		OriginalContent:  document,
	}
}
