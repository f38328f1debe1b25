package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/cli"
)

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the configured categories",
		Long: `Display every category worksheet with its description and columns.
Required columns are marked with *.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initSheets(ctx)
			if err != nil {
				return err
			}

			catalogue, err := store.Categories(ctx)
			if err != nil {
				return fmt.Errorf("failed to read categories: %w", err)
			}
			if len(catalogue) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No category worksheets found. Add a data sheet and describe it in Settings."))
				return nil
			}

			fmt.Println(cli.FormatTitle("Categories"))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("Name"),
				cli.TableHeaderStyle.Render("Description"),
				cli.TableHeaderStyle.Render("Columns"))

			for _, cat := range catalogue {
				headers, err := store.Headers(ctx, cat.Name)
				if err != nil {
					return fmt.Errorf("failed to read columns of %s: %w", cat.Name, err)
				}
				desc := cat.Description
				if desc == "" {
					desc = cli.SubtleStyle.Render("(no description)")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					cli.BoldStyle.Render(cat.Name),
					desc,
					strings.Join(headers, ", "))
			}
			return nil
		},
	}
}
