package connectors

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/xela07ax/nft-agents-console/internal/domain"
)

// SandboxExecutor имитирует исполнение способности локально, без бэкенда.
// Используется в демо-режиме (engine.executor = sandbox) и в тестах.
type SandboxExecutor struct {
	Steps   int           // Сколько шагов прогресса отдать
	Latency time.Duration // Базовая задержка шага; 0, 50-300мс случайно
}

func (s *SandboxExecutor) Execute(ctx context.Context, req domain.ExecutionRequest, progress domain.ProgressFunc) (map[string]any, error) {
	steps := s.Steps
	if steps <= 0 {
		steps = 4
	}

	for i := 1; i <= steps; i++ {
		select {
		case <-time.After(s.stepLatency()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if progress != nil {
			progress(i*100/steps, fmt.Sprintf("step %d/%d", i, steps))
		}
	}

	if req.CapabilityID == "unstable_service" {
		return nil, fmt.Errorf("capability %s: service internal error", req.CapabilityID)
	}

	return map[string]any{
		"text": fmt.Sprintf("Response from agent %s using capability %s on target %s: Processed '%s'",
			req.AgentID, req.CapabilityID, req.TargetID, req.Input),
	}, nil
}

func (s *SandboxExecutor) stepLatency() time.Duration {
	if s.Latency > 0 {
		return s.Latency
	}
	// Имитируем задержку 50-300мс
	return time.Duration(50+rand.IntN(250)) * time.Millisecond
}
