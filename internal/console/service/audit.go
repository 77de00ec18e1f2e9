package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/nft-agents-console/internal/audit"
)

// EventSource: источник событий журнала (память консоли или PostgreSQL).
type EventSource interface {
	FetchEvents(ctx context.Context, f audit.Filter) ([]audit.Event, error)
}

type AuditService struct {
	repo EventSource
}

func NewAuditService(repo EventSource) *AuditService {
	return &AuditService{
		repo: repo,
	}
}

// FetchEvents отдает события, новые первыми. Без Limit отдается 100 событий.
func (s *AuditService) FetchEvents(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	events, err := s.repo.FetchEvents(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("audit_service: failed to fetch events: %w", err)
	}
	return events, nil
}
