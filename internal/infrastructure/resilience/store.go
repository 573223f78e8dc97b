package resilience

import (
	"context"

	"github.com/kirillkom/workflow-dashboard/internal/core/ports"
)

// ContentStore retries blob writes through an Executor.
type ContentStore struct {
	next     ports.ContentStore
	executor *Executor
}

func WrapContentStore(next ports.ContentStore, executor *Executor) ports.ContentStore {
	if executor == nil {
		return next
	}
	return &ContentStore{next: next, executor: executor}
}

func (s *ContentStore) Put(ctx context.Context, path string, body []byte, contentType string) (string, error) {
	var stored string
	err := s.executor.Execute(ctx, "content_store.put", func(callCtx context.Context) error {
		out, err := s.next.Put(callCtx, path, body, contentType)
		if err != nil {
			return err
		}
		stored = out
		return nil
	}, ClassifyTransient)
	if err != nil {
		return "", err
	}
	return stored, nil
}
