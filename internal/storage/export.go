package storage

import (
	"context"
	"fmt"

	"github.com/morf3uzzz/second-brain-telegram-bot/internal/common"
	"github.com/morf3uzzz/second-brain-telegram-bot/internal/service"
)

// Exporter copies every worksheet of the tabular store into a snapshot.
// All sheets are exported, configuration sheets included, so a snapshot
// restores the whole workbook.
type Exporter struct {
	store service.TabularStore
	snap  *Snapshot
}

// NewExporter pairs a store with a snapshot target.
func NewExporter(store service.TabularStore, snap *Snapshot) *Exporter {
	return &Exporter{store: store, snap: snap}
}

// ExportResult summarizes one completed export.
type ExportResult struct {
	Sheets int
	Rows   int
}

// Run exports each worksheet in turn. progress, when non-nil, is called
// after every finished sheet with its name and data row count.
func (e *Exporter) Run(ctx context.Context, progress func(sheet string, rows int)) (ExportResult, error) {
	names, err := e.store.ListSheets(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to list worksheets: %w", err)
	}

	var result ExportResult
	for _, name := range names {
		rows, err := e.store.AllRows(ctx, name)
		if err != nil {
			return result, fmt.Errorf("failed to read worksheet %s: %w", name, err)
		}
		if len(rows) == 0 {
			common.LogDebug("skipping empty worksheet", common.Fields{"sheet": name})
			continue
		}
		headers, data := rows[0], rows[1:]
		if err := e.snap.WriteSheet(ctx, name, headers, data); err != nil {
			return result, err
		}
		result.Sheets++
		result.Rows += len(data)
		if progress != nil {
			progress(name, len(data))
		}
	}
	return result, nil
}
