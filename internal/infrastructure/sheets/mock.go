package sheets

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

//go:embed fixtures/sheet.yaml
var defaultFixture []byte

type fixture struct {
	Headers []string   `yaml:"headers"`
	Rows    [][]string `yaml:"rows"`
}

// MockReader serves a fixed table for demos and for deployments without
// service account credentials.
type MockReader struct {
	headers []string
	rows    [][]string
}

func NewMockReader() (*MockReader, error) {
	return NewMockReaderFromYAML(defaultFixture)
}

func NewMockReaderFromYAML(data []byte) (*MockReader, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode sheet fixture: %w", err)
	}
	if len(f.Headers) == 0 {
		return nil, fmt.Errorf("decode sheet fixture: headers are required")
	}
	return &MockReader{headers: f.Headers, rows: f.Rows}, nil
}

func (r *MockReader) GetValues(ctx context.Context, sheetID, valueRange string) (*domain.SheetValues, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(r.rows))
	for _, row := range r.rows {
		rows = append(rows, append([]string(nil), row...))
	}
	return &domain.SheetValues{
		SpreadsheetID: sheetID,
		Range:         valueRange,
		Headers:       append([]string(nil), r.headers...),
		Rows:          rows,
		Source:        domain.DataSourceMock,
	}, nil
}
