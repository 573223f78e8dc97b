package executions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
	"github.com/kirillkom/workflow-dashboard/internal/infrastructure/resilience"
)

const apiKeyHeader = "X-N8N-API-KEY"

// N8NClient lists executions through the n8n public REST API and resolves
// workflow names from the workflows endpoint.
type N8NClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewN8NClient(baseURL, apiKey string, timeout time.Duration, executor *resilience.Executor) *N8NClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &N8NClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// flexibleID accepts ids encoded either as JSON strings or numbers.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexibleID(n.String())
	return nil
}

type n8nExecution struct {
	ID         flexibleID `json:"id"`
	WorkflowID flexibleID `json:"workflowId"`
	Status     string     `json:"status"`
	Finished   bool       `json:"finished"`
	Mode       string     `json:"mode"`
	StartedAt  time.Time  `json:"startedAt"`
	StoppedAt  *time.Time `json:"stoppedAt"`
}

type n8nWorkflow struct {
	ID   flexibleID `json:"id"`
	Name string     `json:"name"`
}

func (c *N8NClient) ListExecutions(ctx context.Context, limit int) ([]domain.Execution, error) {
	var (
		executions []n8nExecution
		workflows  []n8nWorkflow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var resp struct {
			Data []n8nExecution `json:"data"`
		}
		query := url.Values{"limit": []string{strconv.Itoa(limit)}}
		if err := c.getJSON(gctx, "/api/v1/executions", query, &resp, "list executions"); err != nil {
			return err
		}
		executions = resp.Data
		return nil
	})
	g.Go(func() error {
		var resp struct {
			Data []n8nWorkflow `json:"data"`
		}
		query := url.Values{"limit": []string{"250"}}
		if err := c.getJSON(gctx, "/api/v1/workflows", query, &resp, "list workflows"); err != nil {
			return err
		}
		workflows = resp.Data
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make(map[flexibleID]string, len(workflows))
	for _, wf := range workflows {
		names[wf.ID] = wf.Name
	}

	out := make([]domain.Execution, 0, len(executions))
	for _, raw := range executions {
		name := names[raw.WorkflowID]
		if name == "" {
			name = "Workflow " + string(raw.WorkflowID)
		}
		execution := domain.Execution{
			ID:           string(raw.ID),
			WorkflowName: name,
			Status:       normalizeStatus(raw.Status, raw.Finished),
			Mode:         raw.Mode,
			StartedAt:    raw.StartedAt,
			StoppedAt:    raw.StoppedAt,
			CreatedAt:    raw.StartedAt,
		}
		if raw.StoppedAt != nil && !raw.StartedAt.IsZero() {
			execution.DurationSeconds = int64(raw.StoppedAt.Sub(raw.StartedAt).Round(time.Second) / time.Second)
		}
		out = append(out, execution)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

func normalizeStatus(status string, finished bool) string {
	switch strings.ToLower(status) {
	case "success":
		return string(domain.LogStatusSuccess)
	case "error", "crashed", "failed":
		return string(domain.LogStatusFailed)
	case "":
		if finished {
			return string(domain.LogStatusSuccess)
		}
		return "running"
	default:
		return strings.ToLower(status)
	}
}

func (c *N8NClient) getJSON(ctx context.Context, path string, query url.Values, out any, operation string) error {
	call := func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set(apiKeyHeader, c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("n8n %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("n8n "+operation, resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}
	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, "n8n."+strings.ReplaceAll(operation, " ", "_"), call, resilience.ClassifyHTTP)
}
