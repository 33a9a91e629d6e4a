// Package audit exports the booking ledger as an xlsx workbook. Bookings are
// never deleted, so the workbook is a complete trail of every request and
// decision.
package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// TableSource provides table rows for export.
type TableSource interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName, walkerID string) ([]map[string]any, []string, error)
}

// Exporter writes one sheet per table.
type Exporter struct {
	source TableSource
	logger zerolog.Logger
}

// NewExporter creates an exporter over source.
func NewExporter(source TableSource, logger zerolog.Logger) *Exporter {
	return &Exporter{
		source: source,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Export writes the workbook to w. A non-empty walkerID limits every sheet
// to that walker's blocks.
func (e *Exporter) Export(ctx context.Context, w io.Writer, walkerID string) error {
	tables, err := e.source.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("get table names: %w", err)
	}

	book := NewWorkbook()
	defer func() { _ = book.Close() }()

	for _, table := range tables {
		rows, columns, err := e.source.GetTableData(ctx, table, walkerID)
		if err != nil {
			return fmt.Errorf("read table %s: %w", table, err)
		}
		if err := book.AddSheet(table); err != nil {
			return err
		}
		if err := book.WriteHeader(columns); err != nil {
			return err
		}
		for _, row := range rows {
			values := make([]any, len(columns))
			for i, col := range columns {
				values[i] = row[col]
			}
			if err := book.WriteRow(values); err != nil {
				return err
			}
		}
		e.logger.Debug().Str("table", table).Int("rows", len(rows)).Msg("Exported table")
	}

	if err := book.Save(w); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// Filename names an export taken at t, e.g. "walkpack_audit_2026-03-10.xlsx".
func Filename(t time.Time, walkerID string) string {
	if walkerID == "" {
		return fmt.Sprintf("walkpack_audit_%s.xlsx", t.Format("2006-01-02"))
	}
	return fmt.Sprintf("walkpack_audit_%s_%s.xlsx", walkerID, t.Format("2006-01-02"))
}
