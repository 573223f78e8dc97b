package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

const extraFieldPrefix = "_extra_"

// rowsFromTable converts a header row plus data rows into records.
// Short rows get empty strings for the missing fields; cells beyond the
// header land under _extra_1, _extra_2, ..., a prefix headers may not use.
// Blank rows are skipped and the first non-blank row is the header.
func rowsFromTable(ctx context.Context, table [][]string) ([]domain.Row, error) {
	for len(table) > 0 && blank(table[0]) {
		table = table[1:]
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("no header row")
	}
	header, err := normalizeHeader(table[0])
	if err != nil {
		return nil, err
	}

	rows := make([]domain.Row, 0, len(table)-1)
	for idx, cells := range table[1:] {
		if idx%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if blank(cells) {
			continue
		}
		row := make(domain.Row, len(header))
		for col, name := range header {
			value := ""
			if col < len(cells) {
				value = cells[col]
			}
			row[name] = value
		}
		for col := len(header); col < len(cells); col++ {
			row[fmt.Sprintf("%s%d", extraFieldPrefix, col-len(header)+1)] = cells[col]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeHeader(raw []string) ([]string, error) {
	header := make([]string, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for idx, name := range raw {
		name = strings.TrimSpace(name)
		if idx == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			return nil, fmt.Errorf("header column %d is empty", idx+1)
		}
		if strings.HasPrefix(name, extraFieldPrefix) {
			return nil, fmt.Errorf("header %q uses reserved prefix %q", name, extraFieldPrefix)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate header %q", name)
		}
		seen[name] = struct{}{}
		header[idx] = name
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("no header row")
	}
	return header, nil
}

func blank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
