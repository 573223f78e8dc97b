package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

func TestWorkflowLogAppendAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	created := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO workflow_logs").
		WithArgs("File Upload Processing", "success", int64(420), "ok", created).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("log-1"))

	log := &domain.WorkflowLog{
		WorkflowName:    "File Upload Processing",
		Status:          domain.LogStatusSuccess,
		ExecutionTimeMS: 420,
		Message:         "ok",
		CreatedAt:       created,
	}
	if err := NewWorkflowLogRepository(db).Append(context.Background(), log); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if log.ID != "log-1" {
		t.Fatalf("expected id log-1, got %q", log.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWorkflowLogListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("FROM workflow_logs").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "workflow_name", "status", "execution_time", "message", "created_at"}).
			AddRow("l-2", "Test Workflow", "failed", int64(10), "boom", now).
			AddRow("l-1", "Test Workflow", "success", int64(5), "ok", now.Add(-time.Hour)))

	logs, err := NewWorkflowLogRepository(db).ListRecent(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(logs) != 2 || logs[0].Status != domain.LogStatusFailed || logs[1].ExecutionTimeMS != 5 {
		t.Fatalf("unexpected logs %+v", logs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
