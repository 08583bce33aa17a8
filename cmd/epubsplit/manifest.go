package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuanying/epubsplit/internal/opf"
	"github.com/yuanying/epubsplit/internal/splitter"
)

type manifestOptions struct {
	PackagePath string
	OutputPath  string
	AfterID     string
	Href        string
	Parts       int
}

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest <package.opf>",
		Short: "Register the parts of a split chapter in a package document",
		Long: `Insert manifest items and spine itemrefs for parts 2..N of a split chapter
right after the chapter's own entries. Part hrefs follow the chapter's href
(<base>_-<n><ext>), part ids are derived from the chapter's id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readManifestOptions(cmd, args)
			if err != nil {
				return err
			}
			return runManifest(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.String("after", "", "Manifest id of the split chapter")
	flags.Int("parts", 0, "Total number of parts, including the original")
	flags.String("href", "", "Href of the split chapter (default: taken from the manifest)")
	flags.StringP("output", "o", "", "Output file (default: stdout)")
	return cmd
}

func readManifestOptions(cmd *cobra.Command, args []string) (manifestOptions, error) {
	flags := cmd.Flags()
	opts := manifestOptions{PackagePath: args[0]}
	opts.AfterID, _ = flags.GetString("after")
	opts.Parts, _ = flags.GetInt("parts")
	opts.Href, _ = flags.GetString("href")
	opts.OutputPath, _ = flags.GetString("output")

	if opts.AfterID == "" {
		return manifestOptions{}, fmt.Errorf("--after is required")
	}
	if opts.Parts < 2 {
		return manifestOptions{}, fmt.Errorf("invalid --parts %d: must be at least 2", opts.Parts)
	}
	if _, err := readLogger(cmd); err != nil {
		return manifestOptions{}, err
	}
	return opts, nil
}

func runManifest(cmd *cobra.Command, opts manifestOptions) error {
	data, err := os.ReadFile(opts.PackagePath)
	if err != nil {
		return fmt.Errorf("failed to read package document: %w", err)
	}

	updated, err := registerParts(string(data), opts.AfterID, opts.Href, opts.Parts)
	if err != nil {
		return err
	}

	if opts.OutputPath == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), updated)
		return err
	}
	if err := os.WriteFile(opts.OutputPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("failed to write package document: %w", err)
	}
	return nil
}

// registerParts adds parts 2..parts of the chapter afterID to packageDoc.
// An empty href is looked up in the manifest.
func registerParts(packageDoc, afterID, href string, parts int) (string, error) {
	items, err := opf.ExistingManifestItems(packageDoc)
	if err != nil {
		return "", err
	}

	original := opf.ManifestItem{ID: afterID, Href: href, MediaType: opf.ChapterMediaType}
	found := false
	for _, it := range items {
		if it.ID == afterID {
			found = true
			if original.Href == "" {
				original.Href = it.Href
			}
			if it.MediaType != "" {
				original.MediaType = it.MediaType
			}
			break
		}
	}
	if !found {
		return "", &opf.StructuralError{Element: "item", ID: afterID}
	}
	if original.Href == "" {
		return "", fmt.Errorf("%w: item %q has no href", opf.ErrInvalidUpdate, afterID)
	}

	hrefs := splitter.FilenamesFor(original.Href, parts)
	newItems := opf.PartItems(original, hrefs, opf.ManifestIDs(items))
	return opf.ApplyAll(packageDoc, afterID, newItems)
}
