package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanying/epubsplit/internal/converter"
)

func newBookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book <input.epub>",
		Short: "Split every eligible chapter of an EPUB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readBookOptions(cmd, args)
			if err != nil {
				return err
			}

			opts.Logger.Info("splitting book", "input", opts.InputPath, "output", opts.OutputPath)
			report, err := converter.NewPipeline(opts).Convert(cmd.Context())
			if report != nil {
				asJSON, _ := cmd.Flags().GetBool("json")
				if werr := writeReport(cmd.OutOrStdout(), report, asJSON); werr != nil && err == nil {
					err = werr
				}
			}
			if err != nil {
				return fmt.Errorf("conversion failed: %w", err)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "", "Output file path (default: input with .split.epub extension)")
	flags.IntP("workers", "w", converter.DefaultWorkers, "Number of chapters split concurrently")
	flags.StringSlice("exempt", nil, "File names never split (default: built-in list)")
	flags.Bool("strict", false, "Fail when any chapter cannot be split or registered")
	flags.Bool("dry-run", false, "Report what would be split without writing output")
	flags.Bool("json", false, "Print the report as JSON")
	return cmd
}

func readBookOptions(cmd *cobra.Command, args []string) (converter.ConvertOptions, error) {
	flags := cmd.Flags()
	inputPath := args[0]
	outputPath, _ := flags.GetString("output")
	workers, _ := flags.GetInt("workers")
	strict, _ := flags.GetBool("strict")
	dryRun, _ := flags.GetBool("dry-run")

	if workers < 1 {
		return converter.ConvertOptions{}, fmt.Errorf("invalid --workers %d: must be at least 1", workers)
	}
	if outputPath == "" {
		outputPath = defaultOutputPath(inputPath)
	}

	var exempt []string
	if flags.Changed("exempt") {
		exempt, _ = flags.GetStringSlice("exempt")
		if exempt == nil {
			exempt = []string{}
		}
	}

	logger, err := readLogger(cmd)
	if err != nil {
		return converter.ConvertOptions{}, err
	}

	return converter.ConvertOptions{
		InputPath:   inputPath,
		OutputPath:  outputPath,
		Workers:     workers,
		ExemptNames: exempt,
		Strict:      strict,
		DryRun:      dryRun,
		Logger:      logger,
	}, nil
}

// defaultOutputPath places the result next to the input.
func defaultOutputPath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".split.epub"
}

func writeReport(w io.Writer, report *converter.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if report.Title != "" {
		fmt.Fprintf(w, "%s\n", report.Title)
	}
	for _, item := range report.Items {
		switch item.Status {
		case converter.StatusSplit:
			fmt.Fprintf(w, "split    %s -> %d parts\n", item.Href, len(item.Parts))
		case converter.StatusSkipped:
			fmt.Fprintf(w, "skipped  %s (%s)\n", item.Href, item.Reason)
		case converter.StatusFailed:
			fmt.Fprintf(w, "failed   %s: %s\n", item.Href, item.Error)
		}
	}
	_, err := fmt.Fprintf(w, "%d chapters: %d split, %d skipped, %d failed, %d parts created, %d links rewritten\n",
		report.Chapters, report.Split, report.Skipped, report.Failed, report.PartsCreated, report.LinksRewritten)
	return err
}
