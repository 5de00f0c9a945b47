package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"docledger/internal/domain/documents"
)

var numberCmd = &cobra.Command{
	Use:   "number",
	Short: "Inspect and maintain document numbering",
}

var numberNextCmd = &cobra.Command{
	Use:   "next [document-type]",
	Short: "Issue and print the next number for a document type",
	Long: `Issues the next number exactly as document creation would. The issued slot
is consumed: the next document of that type gets the number after it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, err := documents.ParseType(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		number, err := a.Numbering.Next(ctx, string(docType))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), number)
		return nil
	},
}

var numberSetCmd = &cobra.Command{
	Use:   "set [document-type] [sequence]",
	Short: "Set the raw sequence value of the next issued number",
	Example: `  # Continue invoices from a legacy system at sequence 1500
  docctl number set Invoice 1500`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, err := documents.ParseType(args[0])
		if err != nil {
			return err
		}
		next, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid sequence %q: %w", args[1], err)
		}
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Numbering.SetNext(ctx, string(docType), next); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: next sequence is %d\n", docType, next)
		return nil
	},
}

func init() {
	numberCmd.AddCommand(numberNextCmd)
	numberCmd.AddCommand(numberSetCmd)
}
