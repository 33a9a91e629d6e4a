package db

import (
	"context"
	"fmt"
	"strings"

	"walkpack/internal/model"
)

// auditTable describes one exported table. Columns are listed explicitly so
// the sheet layout does not depend on migration order.
type auditTable struct {
	name         string
	columns      []string
	walkerFilter string
	orderBy      string
}

var auditTables = []auditTable{
	{
		name:         "walk_blocks",
		columns:      []string{"id", "walker_id", "title", "date", "start_time", "end_time", "is_group", "capacity", "created_at", "updated_at"},
		walkerFilter: "walker_id = ?",
		orderBy:      "date, start_time, id",
	},
	{
		name:         "bookings",
		columns:      []string{"id", "walk_block_id", "customer_id", "dog_id", "status", "version", "created_at", "updated_at"},
		walkerFilter: "walk_block_id IN (SELECT id FROM walk_blocks WHERE walker_id = ?)",
		orderBy:      "created_at, id",
	},
}

func findAuditTable(name string) (auditTable, bool) {
	for _, t := range auditTables {
		if t.name == name {
			return t, true
		}
	}
	return auditTable{}, false
}

// GetTableNames lists the tables included in an audit export, in sheet order.
func (db *DB) GetTableNames(context.Context) ([]string, error) {
	names := make([]string, 0, len(auditTables))
	for _, t := range auditTables {
		names = append(names, t.name)
	}
	return names, nil
}

// GetTableData returns the rows of an audit table keyed by column name.
// A non-empty walkerID limits the rows to that walker's blocks.
func (db *DB) GetTableData(ctx context.Context, tableName, walkerID string) ([]map[string]any, []string, error) {
	table, ok := findAuditTable(tableName)
	if !ok {
		return nil, nil, fmt.Errorf("%w: table %q is not exported", model.ErrInvalidInput, tableName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(table.columns, ", "), table.name)
	var args []any
	if walkerID != "" {
		b.WriteString(" WHERE " + table.walkerFilter)
		args = append(args, walkerID)
	}
	b.WriteString(" ORDER BY " + table.orderBy)

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, nil, model.NewStorageError("audit "+table.name, err)
	}
	defer rows.Close()

	var data []map[string]any
	for rows.Next() {
		values := make([]any, len(table.columns))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, model.NewStorageError("audit "+table.name, err)
		}

		row := make(map[string]any, len(values))
		for i, col := range table.columns {
			if raw, isBytes := values[i].([]byte); isBytes {
				row[col] = string(raw)
			} else {
				row[col] = values[i]
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, model.NewStorageError("audit "+table.name, err)
	}
	return data, table.columns, nil
}
