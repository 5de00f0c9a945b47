package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docledger/internal/core/id"
	"docledger/internal/domain/export"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export [document-id]",
	Short: "Print a stored document as JSON or as a text invoice",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json or text")
}

func runExport(cmd *cobra.Command, args []string) error {
	docID, err := id.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", args[0], err)
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.Documents.Get(ctx, docID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch exportFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(export.FromDocument(doc))
	case "text":
		return export.TextFormatter{}.Format(out, doc)
	default:
		return fmt.Errorf("unknown format %q (want json or text)", exportFormat)
	}
}
