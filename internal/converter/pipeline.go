package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/yuanying/epubsplit/internal/epub"
	"github.com/yuanying/epubsplit/internal/opf"
	"github.com/yuanying/epubsplit/internal/splitter"
)

// DefaultWorkers bounds how many chapters are split concurrently.
const DefaultWorkers = 4

// ErrChapterFailed is returned in strict mode when any chapter could not be
// split or registered.
var ErrChapterFailed = errors.New("chapter processing failed")

// ConvertOptions holds options for the conversion pipeline.
type ConvertOptions struct {
	InputPath  string
	OutputPath string

	// Workers bounds concurrent chapter splitting; <= 0 selects DefaultWorkers.
	Workers int
	// ExemptNames overrides splitter.DefaultExemptNames when non-nil.
	ExemptNames []string
	// Strict turns chapter failures into a conversion error.
	Strict bool
	// DryRun reports what would happen without writing the output.
	DryRun bool

	Logger *slog.Logger
}

// Pipeline splits every eligible chapter of an EPUB and writes the result.
type Pipeline struct {
	Options ConvertOptions

	logger   *slog.Logger
	splitter *splitter.Splitter
}

// NewPipeline creates a new conversion pipeline.
func NewPipeline(opts ConvertOptions) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		Options: opts,
		logger:  logger,
		splitter: splitter.New(splitter.Options{
			ExemptNames: opts.ExemptNames,
			Logger:      logger,
		}),
	}
}

// chapter is one XHTML spine item moving through the pipeline.
type chapter struct {
	item   epub.ManifestItem
	linear bool
	result splitter.Result
	parts  []string // archive paths once registered; parts[0] is item.Path
	err    error
}

func (ch *chapter) isSplit() bool {
	return ch.err == nil && len(ch.parts) > 1
}

func (ch *chapter) report() ChapterReport {
	r := ChapterReport{ID: ch.item.ID, Href: ch.item.Href, Linear: ch.linear}
	switch {
	case ch.err != nil:
		r.Status = StatusFailed
		r.Error = ch.err.Error()
	case !ch.result.Success:
		r.Status = StatusFailed
		r.Error = ch.result.Error
	case ch.result.Skipped:
		r.Status = StatusSkipped
		r.Reason = ch.result.Reason
	default:
		r.Status = StatusSplit
		r.Parts = ch.result.Filenames
	}
	return r
}

// Convert executes the conversion pipeline. In strict mode a chapter failure
// returns the report together with ErrChapterFailed and nothing is written.
func (p *Pipeline) Convert(ctx context.Context) (*Report, error) {
	if !p.Options.DryRun {
		if err := p.checkOutputPath(); err != nil {
			return nil, err
		}
	}

	reader, pkg, pkgDoc, err := p.parseEPUB()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	chapters := p.collectChapters(pkg)
	if len(chapters) == 0 {
		return nil, fmt.Errorf("no XHTML chapters found in spine")
	}

	if err := p.splitChapters(ctx, reader, chapters); err != nil {
		return nil, err
	}

	updatedPkg := p.registerParts(reader, pkg, pkgDoc, chapters)

	report := &Report{
		Title:      pkg.Metadata.Title,
		Identifier: pkg.Metadata.Identifier,
		Language:   pkg.Metadata.Language,
		DryRun:     p.Options.DryRun,
	}
	for i := range chapters {
		report.add(chapters[i].report())
	}
	if p.Options.Strict && report.Failed > 0 {
		return report, fmt.Errorf("%w: %d chapter(s)", ErrChapterFailed, report.Failed)
	}

	// archive path -> replacement content
	docs := make(map[string]string)
	if updatedPkg != pkgDoc {
		docs[reader.OPFPath()] = updatedPkg
	}
	for i := range chapters {
		ch := &chapters[i]
		if !ch.isSplit() {
			continue
		}
		for j, part := range ch.parts {
			docs[part] = ch.result.Contents[j]
		}
	}

	report.LinksRewritten = p.rewriteLinks(reader, pkg, chapters, docs)

	p.logger.Info("conversion planned",
		"chapters", report.Chapters,
		"split", report.Split,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"partsCreated", report.PartsCreated,
		"linksRewritten", report.LinksRewritten,
	)

	if p.Options.DryRun {
		return report, nil
	}
	if err := p.writeEPUB(reader, chapters, docs); err != nil {
		return report, err
	}
	return report, nil
}

// checkOutputPath refuses to overwrite the input while it is being read.
func (p *Pipeline) checkOutputPath() error {
	if p.Options.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	in, err := filepath.Abs(p.Options.InputPath)
	if err != nil {
		return fmt.Errorf("failed to resolve input path: %w", err)
	}
	out, err := filepath.Abs(p.Options.OutputPath)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}
	if in == out {
		return fmt.Errorf("output path must differ from input path: %s", p.Options.OutputPath)
	}
	return nil
}

// parseEPUB opens the EPUB file and parses the OPF.
func (p *Pipeline) parseEPUB() (*epub.Reader, *epub.OPF, string, error) {
	reader, err := epub.Open(p.Options.InputPath)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to open EPUB: %w", err)
	}

	pkg, raw, err := reader.OPF()
	if err != nil {
		reader.Close()
		return nil, nil, "", fmt.Errorf("failed to parse OPF: %w", err)
	}

	return reader, pkg, string(raw), nil
}

// collectChapters returns the XHTML spine items in reading order, each once.
func (p *Pipeline) collectChapters(pkg *epub.OPF) []chapter {
	var chapters []chapter
	seen := make(map[string]bool)
	for _, spineItem := range pkg.Spine {
		item, ok := pkg.Item(spineItem.IDRef)
		if !ok {
			p.logger.Warn("spine item not found in manifest, skipping", "idref", spineItem.IDRef)
			continue
		}
		if !item.IsXHTML() || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		chapters = append(chapters, chapter{item: item, linear: spineItem.Linear})
	}
	return chapters
}

// splitChapters runs the splitter over every chapter, at most Workers at a
// time. Per-chapter failures are recorded on the chapter, not returned.
func (p *Pipeline) splitChapters(ctx context.Context, reader *epub.Reader, chapters []chapter) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Options.Workers)

	for i := range chapters {
		ch := &chapters[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := reader.ReadFile(ch.item.Path)
			if err != nil {
				p.logger.Warn("failed to read chapter", "path", ch.item.Path, "error", err)
				ch.result = splitter.Result{OriginalFilename: ch.item.Href, Error: err.Error()}
				return nil
			}
			ch.result = p.splitter.Process(string(data), ch.item.Href)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("splitting interrupted: %w", err)
	}
	return nil
}

// registerParts adds the parts of every split chapter to the package
// document, in spine order. A chapter whose parts cannot be registered keeps
// its original content.
func (p *Pipeline) registerParts(reader *epub.Reader, pkg *epub.OPF, pkgDoc string, chapters []chapter) string {
	existing := append([]string(nil), pkg.ManifestOrder...)
	opfDir := epub.OPFDir(reader.OPFPath())
	planned := make(map[string]bool)

	for i := range chapters {
		ch := &chapters[i]
		res := ch.result
		if !res.Success || res.Skipped || len(res.Filenames) < 2 {
			continue
		}

		paths := make([]string, len(res.Filenames))
		for j, href := range res.Filenames {
			paths[j] = epub.ResolvePath(opfDir, href)
		}
		if conflict := conflictingPart(paths[1:], reader.Has, planned); conflict != "" {
			ch.err = fmt.Errorf("part file %s already exists", conflict)
			p.logger.Warn("cannot register parts", "chapter", ch.item.Href, "error", ch.err)
			continue
		}

		items := opf.PartItems(opf.ManifestItem{
			ID:        ch.item.ID,
			Href:      ch.item.Href,
			MediaType: ch.item.MediaType,
		}, res.Filenames, existing)
		for j := range items {
			items[j].Properties = partProperties(ch.item.Properties, res.Contents[j+1])
		}

		updated, err := opf.ApplyAll(pkgDoc, ch.item.ID, items)
		if err != nil {
			ch.err = fmt.Errorf("failed to register parts: %w", err)
			p.logger.Warn("cannot register parts", "chapter", ch.item.Href, "error", err)
			continue
		}

		pkgDoc = updated
		ch.parts = paths
		existing = append(existing, opf.ManifestIDs(items)...)
		for _, path := range paths[1:] {
			planned[path] = true
		}
		p.logger.Debug("parts registered", "chapter", ch.item.Href, "parts", len(paths))
	}

	return pkgDoc
}

func conflictingPart(paths []string, exists func(string) bool, planned map[string]bool) string {
	for _, path := range paths {
		if exists(path) || planned[path] {
			return path
		}
	}
	return ""
}

// writeEPUB writes the output archive: original entry order, replaced
// documents substituted, new parts right after their chapter.
func (p *Pipeline) writeEPUB(reader *epub.Reader, chapters []chapter, docs map[string]string) (err error) {
	after := make(map[string][]string)
	for i := range chapters {
		if ch := &chapters[i]; ch.isSplit() {
			after[ch.parts[0]] = ch.parts[1:]
		}
	}

	w, err := epub.Create(p.Options.OutputPath)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(p.Options.OutputPath)
		}
	}()

	for _, name := range reader.Names() {
		if content, ok := docs[name]; ok {
			err = w.WriteFile(name, []byte(content))
		} else {
			f, _ := reader.Entry(name)
			err = w.CopyFile(f)
		}
		if err != nil {
			w.Close()
			return err
		}
		for _, part := range after[name] {
			if err = w.WriteFile(part, []byte(docs[part])); err != nil {
				w.Close()
				return err
			}
		}
	}

	if err = w.Close(); err != nil {
		return err
	}
	p.logger.Info("EPUB written", "path", p.Options.OutputPath)
	return nil
}
