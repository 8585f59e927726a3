package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/isis-master/internal/player"
	"github.com/taoyao-code/isis-master/internal/show"
)

// RunLog 基于 pgx 的播放记录（show_runs 表）
type RunLog struct {
	Pool *pgxpool.Pool
}

func NewRunLog(pool *pgxpool.Pool) *RunLog { return &RunLog{Pool: pool} }

func (r *RunLog) Begin(ctx context.Context, run show.Run) error {
	_, err := r.Pool.Exec(ctx, `INSERT INTO show_runs (id, program, loop, iteration, started_at)
        VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Program, run.Loop, run.Iteration, run.StartedAt)
	return err
}

func (r *RunLog) Finish(ctx context.Context, id uuid.UUID, st player.Status, runErr error) error {
	result := "ok"
	var errText *string
	switch {
	case runErr == nil:
	case errors.Is(runErr, player.ErrStopped):
		result = "stopped"
	default:
		result = "error"
		s := runErr.Error()
		errText = &s
	}
	finishedAt := time.Now()
	if st.FinishedAt != nil {
		finishedAt = *st.FinishedAt
	}
	var endTick *int32
	if st.EndTick != nil {
		v := int32(*st.EndTick)
		endTick = &v
	}
	_, err := r.Pool.Exec(ctx, `UPDATE show_runs
        SET finished_at = $2, records = $3, emitted = $4, bad_records = $5, send_errors = $6,
            end_tick = $7, result = $8, error = $9
        WHERE id = $1`,
		id, finishedAt, st.Records, st.Emitted, st.BadRecords, st.SendErrors, endTick, result, errText)
	return err
}

// RunRecord show_runs 行
type RunRecord struct {
	ID         uuid.UUID  `json:"id"`
	Program    string     `json:"program"`
	Loop       bool       `json:"loop"`
	Iteration  int        `json:"iteration"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Emitted    int        `json:"emitted"`
	BadRecords int        `json:"bad_records"`
	Result     *string    `json:"result,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// Recent 最近 limit 次播放
func (r *RunLog) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.Pool.Query(ctx, `SELECT id, program, loop, iteration, started_at, finished_at,
            emitted, bad_records, result, error
        FROM show_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RunRecord, error) {
		var rec RunRecord
		err := row.Scan(&rec.ID, &rec.Program, &rec.Loop, &rec.Iteration, &rec.StartedAt, &rec.FinishedAt,
			&rec.Emitted, &rec.BadRecords, &rec.Result, &rec.Error)
		return rec, err
	})
}
