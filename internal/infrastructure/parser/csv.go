package parser

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func parseCSV(ctx context.Context, body []byte) ([]domain.Row, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("csv is not valid utf-8")
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var table [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		table = append(table, record)
	}
	return rowsFromTable(ctx, table)
}
