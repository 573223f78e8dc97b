package domain

import (
	"encoding/json"
	"time"
)

type FileStatus string

const (
	FileStatusPending   FileStatus = "pending"
	FileStatusProcessed FileStatus = "processed"
	FileStatusFailed    FileStatus = "failed"
)

func (s FileStatus) Terminal() bool {
	return s == FileStatusProcessed || s == FileStatusFailed
}

// CanTransitionTo reports whether s may move to next. Only pending records
// move, and only to a terminal status.
func (s FileStatus) CanTransitionTo(next FileStatus) bool {
	return s == FileStatusPending && next.Terminal()
}

func ParseFileStatus(raw string) (FileStatus, bool) {
	switch FileStatus(raw) {
	case FileStatusPending, FileStatusProcessed, FileStatusFailed:
		return FileStatus(raw), true
	default:
		return "", false
	}
}

// UploadCandidate is the transient input of one upload pipeline run.
type UploadCandidate struct {
	Body         []byte
	MediaType    string
	Size         int64
	OriginalName string
}

type FileRecord struct {
	ID               string          `json:"id"`
	FileName         string          `json:"file_name"`
	StoragePath      string          `json:"file_path"`
	MediaType        string          `json:"file_type"`
	ByteSize         int64           `json:"file_size"`
	OwnerID          string          `json:"client_id"`
	Status           FileStatus      `json:"status"`
	ParsedPayload    *ParsedPayload  `json:"parsed_data,omitempty"`
	ExternalResponse json.RawMessage `json:"n8n_response,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
}

// FileStatusEvent is published whenever a file reaches a terminal status.
type FileStatusEvent struct {
	FileID     string     `json:"file_id"`
	FileName   string     `json:"file_name"`
	Status     FileStatus `json:"status"`
	ElapsedMS  int64      `json:"elapsed_ms"`
	Message    string     `json:"message,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
