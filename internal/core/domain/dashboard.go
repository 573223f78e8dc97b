package domain

import "time"

type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusFailed  LogStatus = "failed"
)

type WorkflowLog struct {
	ID              string    `json:"id"`
	WorkflowName    string    `json:"workflow_name"`
	Status          LogStatus `json:"status"`
	ExecutionTimeMS int64     `json:"execution_time"`
	Message         string    `json:"message"`
	CreatedAt       time.Time `json:"created_at"`
}

type Execution struct {
	ID              string     `json:"id" yaml:"id"`
	WorkflowName    string     `json:"workflow_name" yaml:"workflow_name"`
	Status          string     `json:"status" yaml:"status"`
	Mode            string     `json:"mode" yaml:"mode"`
	DurationSeconds int64      `json:"duration" yaml:"duration"`
	ErrorMessage    string     `json:"error_message,omitempty" yaml:"error_message"`
	StartedAt       time.Time  `json:"startedAt" yaml:"-"`
	StoppedAt       *time.Time `json:"stoppedAt,omitempty" yaml:"-"`
	CreatedAt       time.Time  `json:"created_at" yaml:"-"`
}

type DataSourceKind string

const (
	DataSourceLive DataSourceKind = "live"
	DataSourceMock DataSourceKind = "mock"
)

type SheetValues struct {
	SpreadsheetID string         `json:"spreadsheetId,omitempty"`
	Range         string         `json:"range"`
	Headers       []string       `json:"headers"`
	Rows          [][]string     `json:"rows"`
	Source        DataSourceKind `json:"source"`
}

func (v SheetValues) TotalRows() int {
	return len(v.Rows)
}

type DashboardStats struct {
	TotalWorkflows    int `json:"totalWorkflows"`
	TotalExecutions   int `json:"totalExecutions"`
	SuccessRate       int `json:"successRate"`
	AvgResponseTimeMS int `json:"avgResponseTime"`
	SheetRowCount     int `json:"googleSheetCount"`
}

type DayCount struct {
	Date       string `json:"date"`
	Executions int    `json:"executions"`
}

type StatusCount struct {
	Name  string `json:"name"`
	Count int    `json:"value"`
}

type DashboardCharts struct {
	ExecutionsPerDay []DayCount    `json:"executionsPerDay"`
	SuccessVsFailed  []StatusCount `json:"successVsFailed"`
	SheetStatus      []StatusCount `json:"googleSheetData"`
}

type RecentActivity struct {
	WorkflowLogs []WorkflowLog `json:"workflowLogs"`
	SheetEntries [][]string    `json:"googleSheetEntries"`
}

type DashboardSummary struct {
	Stats          DashboardStats  `json:"stats"`
	Charts         DashboardCharts `json:"charts"`
	RecentActivity RecentActivity  `json:"recentActivity"`
	UploadedFiles  []FileRecord    `json:"uploadedFiles"`
	Warnings       []string        `json:"warnings,omitempty"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}
