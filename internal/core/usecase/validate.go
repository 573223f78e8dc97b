package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

// ValidateCandidate checks the declared media type and size of an upload
// before any processing happens. It performs no I/O.
func ValidateCandidate(candidate domain.UploadCandidate) error {
	if _, ok := domain.PayloadKindFor(candidate.MediaType); !ok {
		return domain.WrapError(domain.ErrValidation, "validate upload",
			fmt.Errorf("unsupported media type %q (allowed: %s)", candidate.MediaType, strings.Join(domain.AllowedMediaTypes(), ", ")))
	}
	if candidate.Size > domain.MaxUploadBytes || int64(len(candidate.Body)) > domain.MaxUploadBytes {
		return domain.WrapError(domain.ErrValidation, "validate upload",
			fmt.Errorf("file size %d exceeds limit of %d bytes", max(candidate.Size, int64(len(candidate.Body))), domain.MaxUploadBytes))
	}
	if len(candidate.Body) == 0 {
		return domain.WrapError(domain.ErrValidation, "validate upload", errors.New("file is empty"))
	}
	if candidate.Size != int64(len(candidate.Body)) {
		return domain.WrapError(domain.ErrValidation, "validate upload",
			fmt.Errorf("declared size %d does not match body length %d", candidate.Size, len(candidate.Body)))
	}
	return nil
}
