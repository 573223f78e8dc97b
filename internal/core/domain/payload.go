package domain

type PayloadKind string

const (
	PayloadTabularCSV         PayloadKind = "tabular-csv"
	PayloadTabularSpreadsheet PayloadKind = "tabular-spreadsheet"
	PayloadStructuredJSON     PayloadKind = "structured-json"
)

// Row is one parsed record. Keys are unique; order is not significant.
type Row map[string]any

type ParsedPayload struct {
	Kind PayloadKind `json:"kind"`
	Rows []Row       `json:"rows"`
}

func (p ParsedPayload) RowCount() int {
	return len(p.Rows)
}
