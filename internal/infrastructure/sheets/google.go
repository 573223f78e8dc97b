package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/resilience"
)

type Credentials struct {
	ClientEmail string
	PrivateKey  string
}

// GoogleReader reads value ranges through the Sheets v4 API with a service
// account.
type GoogleReader struct {
	service  *sheetsapi.Service
	executor *resilience.Executor
}

func NewGoogleReader(ctx context.Context, creds Credentials, executor *resilience.Executor) (*GoogleReader, error) {
	email := strings.TrimSpace(creds.ClientEmail)
	key := NormalizePrivateKey(creds.PrivateKey)
	if email == "" || key == "" {
		return nil, errors.New("google client email and private key are required")
	}
	if !strings.HasPrefix(key, "-----BEGIN") {
		return nil, errors.New("google private key must be PEM encoded")
	}

	conf := &jwt.Config{
		Email:      email,
		PrivateKey: []byte(key),
		Scopes:     []string{sheetsapi.SpreadsheetsReadonlyScope},
		TokenURL:   google.JWTTokenURL,
	}
	service, err := sheetsapi.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &GoogleReader{service: service, executor: executor}, nil
}

func newGoogleReaderWithService(service *sheetsapi.Service) *GoogleReader {
	return &GoogleReader{service: service}
}

// NormalizePrivateKey accepts keys pasted into env files with escaped
// newlines or wrapping quotes.
func NormalizePrivateKey(raw string) string {
	key := strings.TrimSpace(raw)
	key = strings.TrimPrefix(key, `"`)
	key = strings.TrimSuffix(key, `"`)
	return strings.ReplaceAll(key, `\n`, "\n")
}

func (r *GoogleReader) GetValues(ctx context.Context, sheetID, valueRange string) (*domain.SheetValues, error) {
	if strings.TrimSpace(sheetID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get sheet values", errors.New("sheet id is required"))
	}

	var resp *sheetsapi.ValueRange
	call := func(callCtx context.Context) error {
		out, err := r.service.Spreadsheets.Values.Get(sheetID, valueRange).Context(callCtx).Do()
		if err != nil {
			return classifyGoogleError(err)
		}
		resp = out
		return nil
	}

	var err error
	if r.executor != nil {
		err = r.executor.Execute(ctx, "sheets.values_get", call, resilience.ClassifyTransient)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "get sheet values", fmt.Errorf("no data in range %s", valueRange))
	}

	values := &domain.SheetValues{
		SpreadsheetID: sheetID,
		Range:         valueRange,
		Headers:       cellsToStrings(resp.Values[0]),
		Rows:          make([][]string, 0, len(resp.Values)-1),
		Source:        domain.DataSourceLive,
	}
	for _, row := range resp.Values[1:] {
		values.Rows = append(values.Rows, cellsToStrings(row))
	}
	return values, nil
}

func classifyGoogleError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("sheets values get: %w", err)
	}
	switch {
	case apiErr.Code == http.StatusNotFound:
		return domain.WrapError(domain.ErrNotFound, "sheets values get", err)
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
		return domain.WrapError(domain.ErrTemporary, "sheets values get", err)
	default:
		return fmt.Errorf("sheets values get: %w", err)
	}
}

func cellsToStrings(cells []interface{}) []string {
	out := make([]string, len(cells))
	for i, cell := range cells {
		if cell == nil {
			continue
		}
		out[i] = fmt.Sprint(cell)
	}
	return out
}
