package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"docledger/internal/infrastructure/http/v1/dto"
)

var dumpTotals bool

var totalsCmd = &cobra.Command{
	Use:   "totals [document.json]",
	Short: "Preview the totals of a document without saving it",
	Long: `Reads a document in the shape accepted by POST /api/v1/documents and prints
the computed totals with the per-line breakdown. Nothing is numbered or stored.`,
	Example: `  # Preview an invoice
  docctl totals invoice.json

  # Show the raw computation result
  docctl totals invoice.json --dump`,
	Args: cobra.ExactArgs(1),
	RunE: runTotals,
}

func init() {
	totalsCmd.Flags().BoolVar(&dumpTotals, "dump", false, "Dump the raw computation result instead of JSON")
}

func runTotals(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	var req dto.CreateDocumentRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	in, err := req.ToInput()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Documents.Preview(ctx, in)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dumpTotals {
		spew.Fdump(out, res)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(dto.FromPreview(res))
}
