package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

// parseJSON accepts an array of objects or a single object. A single object
// becomes a one-element row list; any other shape is rejected.
func parseJSON(body []byte) ([]domain.Row, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty json document")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	// trimmed has no trailing space, so any unread byte is stray input,
	// including closing delimiters that More() does not report.
	if decoder.InputOffset() != int64(len(trimmed)) {
		return nil, fmt.Errorf("decode json: trailing data after document at offset %d", decoder.InputOffset())
	}

	switch value := doc.(type) {
	case map[string]any:
		return []domain.Row{domain.Row(value)}, nil
	case []any:
		rows := make([]domain.Row, 0, len(value))
		for idx, item := range value {
			object, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("element %d is %s, want object", idx, jsonKind(item))
			}
			rows = append(rows, domain.Row(object))
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("document is %s, want object or array of objects", jsonKind(doc))
	}
}

func jsonKind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
