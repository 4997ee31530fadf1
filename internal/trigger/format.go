package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/backend"
)

// formatReply renders a query result as bounded chat-friendly text: an
// optional prefix, up to maxRows row lines and the total row count.
func formatReply(prefix string, qr *backend.QueryResult, maxRows int) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteString("\n\n")
	}

	if qr.RowCount == 0 {
		b.WriteString("No rows found.")
		return b.String()
	}

	shown := qr.Rows
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}
	for i, row := range shown {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(formatRow(qr.Columns, row))
	}

	if qr.RowCount > len(shown) {
		fmt.Fprintf(&b, "\n… showing %d of %d rows", len(shown), qr.RowCount)
	} else {
		fmt.Fprintf(&b, "\n(%d rows)", qr.RowCount)
	}
	return b.String()
}

func formatRow(columns []string, row []any) string {
	parts := make([]string, 0, len(row))
	for i, v := range row {
		name := fmt.Sprintf("col%d", i)
		if i < len(columns) {
			name = columns[i]
		}
		parts = append(parts, name+"="+formatValue(v))
	}
	return strings.Join(parts, ", ")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return val.Format(time.RFC3339)
	case []byte:
		return string(val)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", val), "0"), ".")
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
