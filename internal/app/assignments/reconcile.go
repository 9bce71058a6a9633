package assignments

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReconcileReport counts what a repair pass touched.
type ReconcileReport struct {
	Agents int `json:"agents"`
	Teams  int `json:"teams"`
	Failed int `json:"failed"`
}

// Reconcile recomputes zone_ids and status for every agent, then status for
// every team. It repairs whatever a best-effort mutation left stale. Items
// are processed independently; a failure is counted and logged.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	agentIDs, err := s.users.ListAgentIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list agents: %w", err)
	}
	for _, id := range agentIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := s.SyncAgentZoneIDs(ctx, id); err != nil {
			report.Failed++
			s.log.Warn("reconcile: zone id sync failed", zap.String("agent_id", id.Hex()), zap.Error(err))
			continue
		}
		if _, err := s.RefreshAgentStatus(ctx, id); err != nil {
			report.Failed++
			s.log.Warn("reconcile: agent status failed", zap.String("agent_id", id.Hex()), zap.Error(err))
			continue
		}
		report.Agents++
	}

	teamIDs, err := s.teams.ListIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list teams: %w", err)
	}
	for _, id := range teamIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := s.RefreshTeamStatus(ctx, id); err != nil {
			report.Failed++
			s.log.Warn("reconcile: team status failed", zap.String("team_id", id.Hex()), zap.Error(err))
			continue
		}
		report.Teams++
	}

	s.audit.Reconciled(ctx, report.Agents, report.Teams, report.Failed)
	s.log.Info("reconcile complete",
		zap.Int("agents", report.Agents),
		zap.Int("teams", report.Teams),
		zap.Int("failed", report.Failed))
	return report, nil
}
