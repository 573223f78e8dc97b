package executions

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/workflow-dashboard/internal/core/domain"
)

//go:embed fixtures/executions.yaml
var defaultFixture []byte

type fixtureExecution struct {
	domain.Execution `yaml:",inline"`
	MinutesAgo       float64 `yaml:"minutes_ago"`
}

// MockSource replays a fixed execution history relative to the current time.
type MockSource struct {
	entries []fixtureExecution
	now     func() time.Time
}

func NewMockSource() (*MockSource, error) {
	return NewMockSourceFromYAML(defaultFixture)
}

func NewMockSourceFromYAML(data []byte) (*MockSource, error) {
	var entries []fixtureExecution
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode executions fixture: %w", err)
	}
	return &MockSource{entries: entries, now: time.Now}, nil
}

func (s *MockSource) ListExecutions(ctx context.Context, limit int) ([]domain.Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	out := make([]domain.Execution, 0, len(s.entries))
	for _, entry := range s.entries {
		if limit > 0 && len(out) == limit {
			break
		}
		execution := entry.Execution
		execution.StartedAt = now.Add(-time.Duration(entry.MinutesAgo * float64(time.Minute)))
		stopped := execution.StartedAt.Add(time.Duration(execution.DurationSeconds) * time.Second)
		execution.StoppedAt = &stopped
		execution.CreatedAt = execution.StartedAt
		out = append(out, execution)
	}
	return out, nil
}
