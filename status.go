package engine

import (
	"context"

	"github.com/codemem/engine/domain/project"
	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/infrastructure/pool"
)

// ProjectStats aggregates a project's memory counts by category,
// lifecycle state, and language, plus file-table size and in-process
// activity counters.
func (e *Engine) ProjectStats(ctx context.Context, proj string) (project.Stats, error) {
	const op = "engine.project_stats"
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	stats := project.Stats{
		Project:     proj,
		ByCategory:  make(map[string]int),
		ByLifecycle: make(map[string]int),
		ByLanguage:  make(map[string]int),
	}

	filter := search.New(search.WithProject(proj))
	var cursor search.Cursor
	for {
		page, err := e.vectors.Scroll(ctx, e.collection, filter, cursor, 512)
		if err != nil {
			return project.Stats{}, mapErr(op, err)
		}
		for _, d := range page.Documents {
			stats.TotalMemories++
			stats.ByCategory[d.Category]++
			stats.ByLifecycle[d.LifecycleState]++
			if d.Language != "" {
				stats.ByLanguage[d.Language]++
			}
		}
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}

	entries, err := e.files.ListProject(ctx, proj)
	if err != nil {
		return project.Stats{}, mapErr(op, err)
	}
	stats.FileCount = len(entries)

	agg := e.projectAggregate(proj)
	stats.SearchCount = agg.SearchCount()
	stats.UpdateCount = agg.UpdateCount()
	return stats, nil
}

// PoolMetrics returns a snapshot of the client pool's observable
// counters.
func (e *Engine) PoolMetrics() pool.Metrics {
	return e.pool.Metrics()
}

// HealthReport is the aggregate health surface: one entry per checked
// subsystem.
type HealthReport struct {
	Healthy bool
	Pool    HealthCheck
	Storage HealthCheck
}

// HealthCheck is one subsystem's verdict.
type HealthCheck struct {
	OK    bool
	Error string
}

// Health fans out to the pool and a lightweight storage ping and folds
// the verdicts into one report.
func (e *Engine) Health(ctx context.Context) HealthReport {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	report := HealthReport{Healthy: true}

	lease, err := e.pool.Acquire(ctx)
	if err != nil {
		report.Pool = HealthCheck{Error: err.Error()}
		report.Healthy = false
	} else {
		pingErr := lease.Conn().Ping(ctx)
		lease.Release(ctx)
		if pingErr != nil {
			report.Pool = HealthCheck{Error: pingErr.Error()}
			report.Healthy = false
		} else {
			report.Pool = HealthCheck{OK: true}
		}
	}

	if sqlDB, err := e.db.DB(); err != nil {
		report.Storage = HealthCheck{Error: err.Error()}
		report.Healthy = false
	} else if err := sqlDB.PingContext(ctx); err != nil {
		report.Storage = HealthCheck{Error: err.Error()}
		report.Healthy = false
	} else {
		report.Storage = HealthCheck{OK: true}
	}

	return report
}
