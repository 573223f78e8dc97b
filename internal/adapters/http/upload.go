package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

const (
	multipartOverheadBytes = 1 << 20
	ownerIDHeader          = "X-Client-Id"
)

var extensionMediaTypes = map[string]string{
	".csv":  domain.MediaTypeCSV,
	".json": domain.MediaTypeJSON,
	".xls":  domain.MediaTypeLegacySpreadsheet,
	".xlsx": domain.MediaTypeModernSpreadsheet,
}

type uploadResponse struct {
	File     *domain.FileRecord `json:"file"`
	Progress []domain.Progress  `json:"progress"`
	Warning  string             `json:"warning,omitempty"`
}

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request) {
	candidate, ownerID, err := readUploadCandidate(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if wantsEventStream(r) {
		rt.streamUpload(w, r, candidate, ownerID)
		return
	}

	var progress []domain.Progress
	record, err := rt.services.Uploads.UploadAndProcess(r.Context(), candidate, ownerID, func(p domain.Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := uploadResponse{File: record, Progress: progress}
	if n := len(progress); n > 0 {
		resp.Warning = progress[n-1].Warning
	}
	writeJSON(w, http.StatusCreated, resp)
}

// streamUpload reports every progress entry as an SSE "progress" event and
// ends the stream with either "done" carrying the record or "error".
func (rt *Router) streamUpload(w http.ResponseWriter, r *http.Request, candidate domain.UploadCandidate, ownerID string) {
	stream, err := newEventStream(w)
	if err != nil {
		writeJSON(w, http.StatusNotAcceptable, map[string]string{"error": err.Error()})
		return
	}

	record, err := rt.services.Uploads.UploadAndProcess(r.Context(), candidate, ownerID, func(p domain.Progress) {
		if sendErr := stream.send("progress", p); sendErr != nil {
			slog.Debug("upload_progress_not_sent", "request_id", requestIDFromContext(r.Context()), "error", sendErr)
		}
	})
	if err != nil {
		_ = stream.send("error", newErrorBody(err))
		return
	}
	_ = stream.send("done", record)
}

type eventStream struct {
	w       io.Writer
	flusher http.Flusher
}

func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventStream{w: w, flusher: flusher}, nil
}

func (s *eventStream) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func wantsEventStream(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Accept")), "text/event-stream")
}

func readUploadCandidate(w http.ResponseWriter, r *http.Request) (domain.UploadCandidate, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxUploadBytes+multipartOverheadBytes)
	if err := r.ParseMultipartForm(domain.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.UploadCandidate{}, "", domain.WrapError(domain.ErrValidation, "read upload",
				fmt.Errorf("file exceeds %d bytes", domain.MaxUploadBytes))
		}
		return domain.UploadCandidate{}, "", domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.UploadCandidate{}, "", domain.WrapError(domain.ErrInvalidInput, "read upload",
			fmt.Errorf("multipart field 'file' is required"))
	}
	defer file.Close()

	// One extra byte lets the size check see oversized bodies.
	body, err := io.ReadAll(io.LimitReader(file, domain.MaxUploadBytes+1))
	if err != nil {
		return domain.UploadCandidate{}, "", domain.WrapError(domain.ErrInvalidInput, "read upload", err)
	}

	ownerID := strings.TrimSpace(r.FormValue("owner_id"))
	if ownerID == "" {
		ownerID = strings.TrimSpace(r.Header.Get(ownerIDHeader))
	}

	return domain.UploadCandidate{
		Body:         body,
		MediaType:    detectMediaType(header.Header.Get("Content-Type"), header.Filename),
		Size:         header.Size,
		OriginalName: header.Filename,
	}, ownerID, nil
}

// detectMediaType trusts the part's declared type unless it is missing or
// generic, in which case the file extension decides.
func detectMediaType(declared, filename string) string {
	normalized := domain.NormalizeMediaType(declared)
	if normalized != "" && normalized != "application/octet-stream" {
		return normalized
	}
	if byExt, ok := extensionMediaTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return byExt
	}
	return normalized
}
