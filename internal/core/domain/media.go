package domain

import (
	"mime"
	"strings"
)

const (
	MediaTypeCSV               = "text/csv"
	MediaTypeJSON              = "application/json"
	MediaTypeLegacySpreadsheet = "application/vnd.ms-excel"
	MediaTypeModernSpreadsheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// MaxUploadBytes is the upload size ceiling (10 MiB).
const MaxUploadBytes int64 = 10 << 20

var allowedMediaTypes = map[string]PayloadKind{
	MediaTypeCSV:               PayloadTabularCSV,
	MediaTypeLegacySpreadsheet: PayloadTabularSpreadsheet,
	MediaTypeModernSpreadsheet: PayloadTabularSpreadsheet,
	MediaTypeJSON:              PayloadStructuredJSON,
}

// NormalizeMediaType lowercases the type and drops parameters such as charset.
func NormalizeMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		if idx := strings.Index(raw, ";"); idx >= 0 {
			raw = raw[:idx]
		}
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return parsed
}

func PayloadKindFor(mediaType string) (PayloadKind, bool) {
	kind, ok := allowedMediaTypes[NormalizeMediaType(mediaType)]
	return kind, ok
}

func AllowedMediaTypes() []string {
	return []string{
		MediaTypeCSV,
		MediaTypeLegacySpreadsheet,
		MediaTypeModernSpreadsheet,
		MediaTypeJSON,
	}
}
