package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "epubsplit",
		Short: "Split EPUB chapters at text/image boundaries",
		Long: `epubsplit splits XHTML chapters whose body alternates between runs of
text and runs of images into one document per run, and registers the new
documents in the package manifest and spine right after the original.

It works on whole books (book), single chapter files (chapter) and package
documents (manifest, validate), and can serve the same operations as MCP
tools over stdio (mcp).`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("log-level", defaultLogLevel, "Log level: debug, info, warn, error")
	flags.String("log-format", defaultLogFormat, "Log format: text, json")
	flags.BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")

	cmd.AddCommand(
		newBookCmd(),
		newChapterCmd(),
		newManifestCmd(),
		newValidateCmd(),
		newMCPCmd(),
	)
	return cmd
}

// readLogger builds the logger selected by the persistent logging flags.
func readLogger(cmd *cobra.Command) (*slog.Logger, error) {
	flags := cmd.Flags()
	level, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")
	verbose, _ := flags.GetBool("verbose")

	if _, err := parseLogLevel(level); err != nil {
		return nil, err
	}
	if _, err := parseLogFormat(format); err != nil {
		return nil, err
	}
	if verbose {
		level = "debug"
	}
	return buildLogger(os.Stderr, level, format), nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid --log-level %q: must be one of debug, info, warn, error", s)
}

func parseLogFormat(s string) (string, error) {
	switch f := strings.ToLower(s); f {
	case "text", "json":
		return f, nil
	}
	return "", fmt.Errorf("invalid --log-format %q: must be text or json", s)
}

// buildLogger creates a logger writing to w. Invalid values fall back to the
// defaults; callers validate flags first.
func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, err := parseLogLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	f, err := parseLogFormat(format)
	if err != nil {
		f = defaultLogFormat
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if f == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
