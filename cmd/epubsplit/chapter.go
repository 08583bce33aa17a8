package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yuanying/epubsplit/internal/splitter"
)

type chapterOptions struct {
	InputPath string
	OutDir    string
	DryRun    bool
	JSON      bool
	Splitter  splitter.Options
}

func newChapterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapter <file.xhtml>",
		Short: "Split a single chapter file into parts",
		Long: `Split a single XHTML chapter. Parts are written to --out-dir: the first
keeps the chapter's file name, the others are named <base>_-<n><ext>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readChapterOptions(cmd, args)
			if err != nil {
				return err
			}
			return runChapter(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringP("out-dir", "d", "", "Directory receiving the parts")
	flags.StringSlice("exempt", nil, "File names never split (default: built-in list)")
	flags.Bool("dry-run", false, "Report the result without writing parts")
	flags.Bool("json", false, "Print the result as JSON")
	return cmd
}

func readChapterOptions(cmd *cobra.Command, args []string) (chapterOptions, error) {
	flags := cmd.Flags()
	opts := chapterOptions{InputPath: args[0]}
	opts.OutDir, _ = flags.GetString("out-dir")
	opts.DryRun, _ = flags.GetBool("dry-run")
	opts.JSON, _ = flags.GetBool("json")

	if opts.OutDir == "" && !opts.DryRun {
		return chapterOptions{}, fmt.Errorf("--out-dir is required unless --dry-run is set")
	}
	if flags.Changed("exempt") {
		opts.Splitter.ExemptNames, _ = flags.GetStringSlice("exempt")
		if opts.Splitter.ExemptNames == nil {
			opts.Splitter.ExemptNames = []string{}
		}
	}

	logger, err := readLogger(cmd)
	if err != nil {
		return chapterOptions{}, err
	}
	opts.Splitter.Logger = logger
	return opts, nil
}

func runChapter(cmd *cobra.Command, opts chapterOptions) error {
	data, err := os.ReadFile(opts.InputPath)
	if err != nil {
		return fmt.Errorf("failed to read chapter: %w", err)
	}

	res := splitter.New(opts.Splitter).Process(string(data), filepath.Base(opts.InputPath))

	out := cmd.OutOrStdout()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	}

	switch {
	case !res.Success:
		return fmt.Errorf("chapter not split: %s", res.Error)
	case res.Skipped:
		if !opts.JSON {
			fmt.Fprintf(out, "skipped %s (%s)\n", res.OriginalFilename, res.Reason)
		}
		return nil
	}

	if !opts.DryRun {
		if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		for i, name := range res.Filenames {
			if err := os.WriteFile(filepath.Join(opts.OutDir, name), []byte(res.Contents[i]), 0o644); err != nil {
				return fmt.Errorf("failed to write part: %w", err)
			}
		}
	}
	if !opts.JSON {
		for _, name := range res.Filenames {
			fmt.Fprintln(out, name)
		}
	}
	return nil
}
