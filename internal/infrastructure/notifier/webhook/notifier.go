package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/resilience"
)

const maxResponseBytes = 1 << 20

// Notifier posts parsed uploads to the automation webhook. An empty URL turns
// every call into a skipped no-op.
type Notifier struct {
	url        string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
	HTTPClient         *http.Client
}

func New(url string, options Options) *Notifier {
	client := options.HTTPClient
	if client == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Notifier{
		url:        strings.TrimSpace(url),
		httpClient: client,
		executor:   options.ResilienceExecutor,
	}
}

type forwardRequest struct {
	FileID      string             `json:"fileId"`
	FileName    string             `json:"fileName"`
	OwnerID     string             `json:"ownerId"`
	PayloadKind domain.PayloadKind `json:"payloadKind"`
	Rows        []domain.Row       `json:"rows"`
	UploadTime  time.Time          `json:"uploadTime"`
}

func (n *Notifier) Forward(ctx context.Context, record *domain.FileRecord, payload domain.ParsedPayload) domain.ForwardResult {
	if n.url == "" {
		return domain.ForwardResult{Skipped: true}
	}

	rows := payload.Rows
	if rows == nil {
		rows = []domain.Row{}
	}
	body, err := json.Marshal(forwardRequest{
		FileID:      record.ID,
		FileName:    record.FileName,
		OwnerID:     record.OwnerID,
		PayloadKind: payload.Kind,
		Rows:        rows,
		UploadTime:  record.CreatedAt.UTC(),
	})
	if err != nil {
		return warning(0, fmt.Errorf("marshal forward request: %w", err))
	}

	var (
		statusCode int
		response   []byte
	)
	call := func(callCtx context.Context) error {
		code, out, err := n.post(callCtx, body)
		statusCode = code
		response = out
		return err
	}
	if n.executor != nil {
		err = n.executor.Execute(ctx, "webhook.forward", call, resilience.ClassifyHTTP)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return warning(statusCode, err)
	}

	result := domain.ForwardResult{StatusCode: statusCode}
	if json.Valid(response) {
		result.Response = response
	}
	return result
}

func (n *Notifier) post(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, nil, resilience.NewHTTPStatusError("webhook forward", resp)
	}
	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read webhook response: %w", err)
	}
	return resp.StatusCode, bytes.TrimSpace(out), nil
}

func warning(statusCode int, err error) domain.ForwardResult {
	return domain.ForwardResult{
		StatusCode: statusCode,
		Warning:    domain.WrapError(domain.ErrForward, "forward upload", err).Error(),
	}
}
