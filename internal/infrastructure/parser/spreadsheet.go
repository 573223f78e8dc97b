package parser

import (
	"bytes"
	"context"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// parseWorkbook reads the first sheet of an OOXML workbook.
func parseWorkbook(ctx context.Context, body []byte) ([]domain.Row, error) {
	if !bytes.HasPrefix(body, zipMagic) {
		return nil, fmt.Errorf("not an xlsx workbook")
	}
	book, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	table, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rowsFromTable(ctx, table)
}

// parseLegacyWorkbook reads the first sheet of a BIFF (.xls) workbook. Files
// declared as legacy but carrying an OOXML container go through excelize.
func parseLegacyWorkbook(ctx context.Context, body []byte) (rows []domain.Row, err error) {
	if bytes.HasPrefix(body, zipMagic) {
		return parseWorkbook(ctx, body)
	}
	if !bytes.HasPrefix(body, oleMagic) {
		return nil, fmt.Errorf("not an xls workbook")
	}

	// The BIFF decoder panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = fmt.Errorf("decode xls workbook: %v", r)
		}
	}()

	book, err := xls.OpenReader(bytes.NewReader(body), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open xls workbook: %w", err)
	}
	if book.NumSheets() == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("workbook has no readable sheet")
	}

	table := make([][]string, 0, int(sheet.MaxRow)+1)
	for idx := 0; idx <= int(sheet.MaxRow); idx++ {
		row := sheet.Row(idx)
		if row == nil {
			table = append(table, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for col := 0; col < row.LastCol(); col++ {
			cells = append(cells, row.Col(col))
		}
		table = append(table, cells)
	}
	return rowsFromTable(ctx, table)
}
