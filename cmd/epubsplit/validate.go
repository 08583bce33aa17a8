package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuanying/epubsplit/internal/opf"
)

var errInvalidPackage = errors.New("package document is invalid")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <package.opf>",
		Short: "Check that a package document has package, manifest, spine and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := readLogger(cmd); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read package document: %w", err)
			}

			report := opf.ValidateStructure(string(data))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("%w: %s", errInvalidPackage, report.Error)
			}
			return nil
		},
	}
}
