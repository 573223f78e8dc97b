package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
	"github.com/kirillkom/workflow-dashboard/internal/core/ports"
)

const storagePrefix = "uploads"

type submitter struct {
	store ports.ContentStore
	repo  ports.FileRepository
	now   func() time.Time
}

// submit writes the raw bytes and then the metadata row. A blob written
// before a failed insert stays in the content store.
func (s *submitter) submit(
	ctx context.Context,
	candidate domain.UploadCandidate,
	payload domain.ParsedPayload,
	ownerID string,
) (*domain.FileRecord, error) {
	path := storagePath(s.now(), candidate.OriginalName)

	storedPath, err := s.store.Put(ctx, path, candidate.Body, domain.NormalizeMediaType(candidate.MediaType))
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "save to content store", err)
	}

	record := &domain.FileRecord{
		FileName:      candidate.OriginalName,
		StoragePath:   storedPath,
		MediaType:     domain.NormalizeMediaType(candidate.MediaType),
		ByteSize:      candidate.Size,
		OwnerID:       ownerID,
		Status:        domain.FileStatusPending,
		ParsedPayload: &payload,
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		slog.Warn("orphaned_blob", "storage_path", storedPath, "error", err)
		return nil, domain.WrapError(domain.ErrStorage, "create file metadata", err)
	}
	return record, nil
}

func storagePath(now time.Time, filename string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s/%d_%s_%s", storagePrefix, now.UnixNano(), suffix, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "upload.bin"
	}
	return base
}
