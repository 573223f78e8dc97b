package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/workflow-dashboard/internal/config"
	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
	"github.com/kirillkom/workflow-dashboard/internal/core/ports"
	"github.com/kirillkom/workflow-dashboard/internal/observability/metrics"
)

const maxJSONBodyBytes = 1 << 20

// Services groups the inbound ports served over HTTP. Metrics is optional.
type Services struct {
	Uploads   ports.FileUploader
	Files     ports.FileReader
	Statuses  ports.FileStatusApplier
	Logs      ports.WorkflowLogService
	Dashboard ports.DashboardReader
	Metrics   *metrics.HTTPServerMetrics
}

type Router struct {
	cfg      config.Config
	services Services
}

func NewRouter(cfg config.Config, services Services) *Router {
	return &Router{cfg: cfg, services: services}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.Handle("POST /v1/files", backpressureMiddleware(
		http.HandlerFunc(rt.uploadFile),
		rt.cfg.UploadMaxInFlight,
		rt.cfg.UploadQueueWait,
	))
	api.HandleFunc("GET /v1/files", rt.listFiles)
	api.HandleFunc("GET /v1/files/{id}", rt.getFile)
	api.HandleFunc("POST /v1/files/{id}/status", rt.applyFileStatus)
	api.HandleFunc("GET /v1/workflow-logs", rt.listWorkflowLogs)
	api.HandleFunc("POST /v1/workflow-logs", rt.recordWorkflowLog)
	api.HandleFunc("GET /v1/executions", rt.listExecutions)
	api.HandleFunc("GET /v1/sheet", rt.getSheet)
	api.HandleFunc("GET /v1/dashboard", rt.getDashboard)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("/v1/", rateLimitMiddleware(api, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst))

	var handler http.Handler = mux
	if rt.services.Metrics != nil {
		mux.Handle("GET /metrics", rt.services.Metrics.Handler())
		handler = rt.services.Metrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

func newListResponse[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Data: items, Total: len(items)}
}

func (rt *Router) listFiles(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	files, err := rt.services.Files.ListRecent(r.Context(), clampListLimit(limit))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(files))
}

func (rt *Router) getFile(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file id is required"})
		return
	}
	record, err := rt.services.Files.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type fileStatusRequest struct {
	Status      string          `json:"status"`
	Response    json.RawMessage `json:"response"`
	N8NResponse json.RawMessage `json:"n8n_response"`
}

func (rt *Router) applyFileStatus(w http.ResponseWriter, r *http.Request) {
	var req fileStatusRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	status := domain.FileStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if status != "" {
		parsed, ok := domain.ParseFileStatus(string(status))
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown status %q", req.Status)})
			return
		}
		status = parsed
	}
	response := req.N8NResponse
	if len(req.Response) > 0 {
		response = req.Response
	}
	if string(response) == "null" {
		response = nil
	}

	record, err := rt.services.Statuses.Apply(r.Context(), r.PathValue("id"), status, response)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) listWorkflowLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	logs, err := rt.services.Logs.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(logs))
}

type workflowLogRequest struct {
	WorkflowName  string `json:"workflow_name"`
	Status        string `json:"status"`
	ExecutionTime int64  `json:"execution_time"`
	Message       string `json:"message"`
}

func (rt *Router) recordWorkflowLog(w http.ResponseWriter, r *http.Request) {
	var req workflowLogRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	log, err := rt.services.Logs.Record(r.Context(), domain.WorkflowLog{
		WorkflowName:    req.WorkflowName,
		Status:          domain.LogStatus(req.Status),
		ExecutionTimeMS: req.ExecutionTime,
		Message:         req.Message,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, log)
}

func (rt *Router) listExecutions(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	executions, err := rt.services.Dashboard.Executions(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(executions))
}

type sheetResponse struct {
	*domain.SheetValues
	TotalRows int `json:"totalRows"`
}

func (rt *Router) getSheet(w http.ResponseWriter, r *http.Request) {
	values, err := rt.services.Dashboard.Sheet(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if values.Headers == nil {
		values.Headers = []string{}
	}
	if values.Rows == nil {
		values.Rows = [][]string{}
	}
	writeJSON(w, http.StatusOK, sheetResponse{SheetValues: values, TotalRows: values.TotalRows()})
}

func (rt *Router) getDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.services.Dashboard.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func limitParam(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse limit", fmt.Errorf("limit must be a non-negative integer, got %q", raw))
	}
	return limit, nil
}

func clampListLimit(limit int) int {
	switch {
	case limit <= 0:
		return 10
	case limit > 200:
		return 200
	default:
		return limit
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
