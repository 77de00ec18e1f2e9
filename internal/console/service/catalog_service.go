package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/nft-agents-console/internal/audit"
	"github.com/xela07ax/nft-agents-console/internal/catalog"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/engine"
	"github.com/xela07ax/nft-agents-console/internal/matcher"
	"go.uber.org/zap"
)

// RunStatsProvider: сводка запусков для дашборда.
type RunStatsProvider interface {
	Stats() domain.RunStats
}

// CatalogService: цели, способности, совместимость и дашборд.
type CatalogService struct {
	catalog *catalog.Catalog
	runs    RunStatsProvider
	session Session
	auditor audit.Auditor
	opts    matcher.Options
	logger  *zap.Logger
}

func NewCatalogService(cat *catalog.Catalog, runs RunStatsProvider, session Session, auditor audit.Auditor, opts matcher.Options, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		catalog: cat,
		runs:    runs,
		session: session,
		auditor: auditor,
		opts:    opts,
		logger:  logger.Named("catalog-service"),
	}
}

func (s *CatalogService) Targets() []domain.Target {
	return s.catalog.Targets()
}

func (s *CatalogService) Target(id string) (domain.Target, error) {
	return s.catalog.Target(id)
}

func (s *CatalogService) Capabilities(installedOnly bool) []domain.Capability {
	if installedOnly {
		return s.catalog.InstalledCapabilities()
	}
	return s.catalog.Capabilities()
}

// Compatibility объясняет, какие способности доступны паре агент-цель.
// Пустой ID означает "не выбрано".
func (s *CatalogService) Compatibility(agentID, targetID string) (matcher.Result, error) {
	var agent *domain.Agent
	var target *domain.Target
	if agentID != "" {
		a, err := s.catalog.Agent(agentID)
		if err != nil {
			return matcher.Result{}, err
		}
		agent = &a
	}
	if targetID != "" {
		t, err := s.catalog.Target(targetID)
		if err != nil {
			return matcher.Result{}, err
		}
		target = &t
	}
	return matcher.ExplainWith(agent, target, s.catalog.Capabilities(), s.opts), nil
}

// EligibleTargets: цели, типы которых заявлены агентом.
func (s *CatalogService) EligibleTargets(agentID string) ([]domain.Target, error) {
	a, err := s.catalog.Agent(agentID)
	if err != nil {
		return nil, err
	}
	return matcher.EligibleTargets(a, s.catalog.Targets()), nil
}

// SetInstalled переключает флаг установки способности в магазине.
func (s *CatalogService) SetInstalled(ctx context.Context, id domain.CapabilityID, installed bool) (domain.Capability, error) {
	c, err := s.catalog.SetInstalled(id, installed)
	action := "capability.uninstall"
	if installed {
		action = "capability.install"
	}
	s.record(ctx, action, id.String(), err)
	if err != nil {
		return domain.Capability{}, err
	}
	s.logger.Info("capability toggled", zap.String("capability_id", id.String()), zap.Bool("installed", installed))
	return c, nil
}

func (s *CatalogService) InstallAll(ctx context.Context) int {
	n := s.catalog.InstallAll()
	s.record(ctx, "capability.install_all", fmt.Sprintf("%d", n), nil)
	return n
}

func (s *CatalogService) Dashboard() domain.Dashboard {
	var d domain.Dashboard

	agents := s.catalog.Agents()
	d.Agents = domain.AgentStats{Total: len(agents), ByStatus: make(map[domain.AgentStatus]int)}
	var rateSum float64
	for _, a := range agents {
		d.Agents.ByStatus[a.Status]++
		d.Agents.TotalInferences += a.TotalInferences
		rateSum += a.SuccessRate
	}
	if len(agents) > 0 {
		d.Agents.AverageSuccessRate = rateSum / float64(len(agents))
	}

	targets := s.catalog.Targets()
	d.Targets = domain.TargetStats{Total: len(targets), ByStatus: make(map[domain.TargetStatus]int)}
	for _, t := range targets {
		d.Targets.ByStatus[t.Status]++
		if t.Deployable() {
			d.Targets.Deployable++
		}
	}

	d.Capabilities = domain.CapabilityStats{
		Total:     len(s.catalog.Capabilities()),
		Installed: len(s.catalog.InstalledCapabilities()),
	}

	if s.runs != nil {
		d.Runs = s.runs.Stats()
	} else {
		d.Runs = domain.RunStats{ByStatus: map[domain.RunStatus]int{}}
	}
	return d
}

func (s *CatalogService) record(ctx context.Context, action, entityID string, err error) {
	if s.auditor == nil {
		return
	}
	ev := audit.Event{
		TraceID:  engine.TraceID(ctx),
		Kind:     audit.KindCatalog,
		Action:   action,
		EntityID: entityID,
		ActorID:  actorID(s.session),
		Status:   audit.StatusSuccess,
	}
	if err != nil {
		ev.Status = audit.StatusFailed
		ev.Error = err.Error()
	}
	s.auditor.Log(ev)
}
