package postgres

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/datatypes"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
)

const DefaultListLimit = 50

// RunQueries serves read paths that bypass the ORM.
type RunQueries struct {
	pool *pgxpool.Pool
}

type runRow struct {
	ID              uuid.UUID  `db:"id"`
	BrowserConfigID uuid.UUID  `db:"browser_config_id"`
	Tenant          string     `db:"tenant"`
	UserID          string     `db:"user_id"`
	Type            string     `db:"type"`
	Payload         []byte     `db:"payload"`
	Status          string     `db:"status"`
	ScheduledAt     time.Time  `db:"scheduled_at"`
	StartedAt       *time.Time `db:"started_at"`
	FinishedAt      *time.Time `db:"finished_at"`
	RunDurationMS   int64      `db:"run_duration_ms"`
	RetryCount      int        `db:"retry_count"`
	Priority        int        `db:"priority"`
	TriggeredBy     string     `db:"triggered_by"`
}

func (r runRow) toDomain() *automation.RunRecord {
	return runModel{
		ID:              r.ID,
		BrowserConfigID: r.BrowserConfigID,
		Tenant:          r.Tenant,
		UserID:          r.UserID,
		Type:            r.Type,
		Payload:         datatypes.JSON(r.Payload),
		Status:          r.Status,
		ScheduledAt:     r.ScheduledAt,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		RunDurationMS:   r.RunDurationMS,
		RetryCount:      r.RetryCount,
		Priority:        r.Priority,
		TriggeredBy:     r.TriggeredBy,
	}.toDomain()
}

const runColumns = `id, browser_config_id, tenant, user_id, type, payload::text AS payload, status,
	scheduled_at, started_at, finished_at, run_duration_ms, retry_count, priority, triggered_by`

// ListByUser returns a user's runs, newest first.
func (q *RunQueries) ListByUser(ctx context.Context, tenant, userID string, limit int) ([]*automation.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []runRow
	err := pgxscan.Select(ctx, q.pool, &rows,
		`SELECT `+runColumns+` FROM automation_runs
		 WHERE tenant = $1 AND user_id = $2
		 ORDER BY scheduled_at DESC
		 LIMIT $3`, tenant, userID, limit)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// Due returns SCHEDULED runs on usable sessions, highest priority first.
// The worker uses it to re-submit runs whose dispatch message was lost.
func (q *RunQueries) Due(ctx context.Context, olderThan time.Time, limit int) ([]*automation.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []runRow
	err := pgxscan.Select(ctx, q.pool, &rows,
		`SELECT `+runColumns+` FROM automation_runs r
		 WHERE r.status = $1 AND r.scheduled_at < $2
		   AND EXISTS (SELECT 1 FROM browser_configs c WHERE c.id = r.browser_config_id AND c.session_status = $3)
		 ORDER BY r.priority DESC, r.scheduled_at
		 LIMIT $4`, string(automation.StatusScheduled), olderThan, string(automation.SessionValid), limit)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

// CountByStatus reports how many of a user's runs are in each status.
func (q *RunQueries) CountByStatus(ctx context.Context, tenant, userID string) (map[automation.RunStatus]int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	err := pgxscan.Select(ctx, q.pool, &rows,
		`SELECT status, count(*) AS n FROM automation_runs
		 WHERE tenant = $1 AND user_id = $2
		 GROUP BY status`, tenant, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[automation.RunStatus]int, len(rows))
	for _, r := range rows {
		out[automation.RunStatus(r.Status)] = r.N
	}
	return out, nil
}

func toRecords(rows []runRow) []*automation.RunRecord {
	out := make([]*automation.RunRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
