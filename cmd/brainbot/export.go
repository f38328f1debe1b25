package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/cli"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/storage"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Snapshot the spreadsheet into a local SQLite file",
		Long: `Copy every worksheet into a local SQLite database. The snapshot is a
full backup: data sheets, Settings, Prompts and the Inbox audit log.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initSheets(ctx)
			if err != nil {
				return err
			}

			path, _ := cmd.Flags().GetString("output")
			if path == "" {
				path = snapshotPath()
			}
			snap, err := storage.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = snap.Close() }()

			names, err := store.ListSheets(ctx)
			if err != nil {
				return fmt.Errorf("failed to list worksheets: %w", err)
			}

			bar := progressbar.NewOptions(len(names),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Exporting worksheets...[reset]"),
			)

			exporter := storage.NewExporter(store, snap)
			result, err := exporter.Run(ctx, func(string, int) {
				_ = bar.Add(1)
			})
			_ = bar.Finish()
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"Exported %d sheets (%d rows) to %s", result.Sheets, result.Rows, snap.Path())))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "snapshot file path (default: brainbot-export-<date>.db)")
	return cmd
}
