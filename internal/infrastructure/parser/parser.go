package parser

import (
	"context"
	"fmt"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

// Parser dispatches raw upload bytes to the decoder for their media type.
type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(ctx context.Context, body []byte, mediaType string) (domain.ParsedPayload, error) {
	normalized := domain.NormalizeMediaType(mediaType)
	var (
		rows []domain.Row
		err  error
	)
	switch normalized {
	case domain.MediaTypeCSV:
		rows, err = parseCSV(ctx, body)
	case domain.MediaTypeModernSpreadsheet:
		rows, err = parseWorkbook(ctx, body)
	case domain.MediaTypeLegacySpreadsheet:
		rows, err = parseLegacyWorkbook(ctx, body)
	case domain.MediaTypeJSON:
		rows, err = parseJSON(body)
	default:
		return domain.ParsedPayload{}, domain.WrapError(domain.ErrParse, "parse upload",
			fmt.Errorf("no parser for media type %q", mediaType))
	}
	if err != nil {
		return domain.ParsedPayload{}, domain.WrapError(domain.ErrParse, "parse "+normalized, err)
	}

	kind, _ := domain.PayloadKindFor(normalized)
	return domain.ParsedPayload{Kind: kind, Rows: rows}, nil
}
