package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"demandline/internal/datemath"
	"demandline/internal/domain"
	"demandline/internal/stage"
)

// Periods are stored under their stage key; the synthetic progress row keeps
// the reserved mini_progress key so existing databases stay readable. The
// kind tag is derived on scan and stripped on write.

const periodColumns = `id,demand_id,stage,start_date,end_date`

func storageStage(p domain.StagePeriod) string {
	if p.Kind == domain.PeriodProgress {
		return stage.ProgressKey
	}
	return p.Stage
}

func scanPeriod(scan func(dest ...any) error) (domain.StagePeriod, error) {
	var p domain.StagePeriod
	var stageKey, startDate, endDate string
	err := scan(&p.ID, &p.DemandID, &stageKey, &startDate, &endDate)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if stageKey == stage.ProgressKey {
		p.Kind = domain.PeriodProgress
	} else {
		p.Kind = domain.PeriodReal
		p.Stage = stageKey
	}
	if p.StartDate, err = datemath.Parse(startDate); err != nil {
		return p, fmt.Errorf("period %s: bad start date %q: %w", p.ID, startDate, err)
	}
	if p.EndDate, err = datemath.Parse(endDate); err != nil {
		return p, fmt.Errorf("period %s: bad end date %q: %w", p.ID, endDate, err)
	}
	return p, nil
}

func (r Repo) InsertPeriodTx(ctx context.Context, tx *sql.Tx, p domain.StagePeriod) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO demand_stage_periods(`+periodColumns+`) VALUES (?,?,?,?,?)`,
		p.ID, p.DemandID, storageStage(p), datemath.Format(p.StartDate), datemath.Format(p.EndDate))
	return err
}

func (r Repo) GetPeriod(ctx context.Context, id string) (domain.StagePeriod, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM demand_stage_periods WHERE id=?`, id)
	return scanPeriod(row.Scan)
}

func (r Repo) GetPeriodTx(ctx context.Context, tx *sql.Tx, id string) (domain.StagePeriod, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM demand_stage_periods WHERE id=?`, id)
	return scanPeriod(row.Scan)
}

func (r Repo) ListPeriods(ctx context.Context, demandID string) ([]domain.StagePeriod, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+periodColumns+` FROM demand_stage_periods WHERE demand_id=? ORDER BY start_date ASC, id ASC`, demandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPeriods(rows)
}

// ListAllPeriods returns every period grouped under its demand id, one query
// for the whole timeline.
func (r Repo) ListAllPeriods(ctx context.Context) (map[string][]domain.StagePeriod, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+periodColumns+` FROM demand_stage_periods ORDER BY demand_id ASC, start_date ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string][]domain.StagePeriod{}
	for rows.Next() {
		p, err := scanPeriod(rows.Scan)
		if err != nil {
			return nil, err
		}
		res[p.DemandID] = append(res[p.DemandID], p)
	}
	return res, rows.Err()
}

func (r Repo) UpdatePeriodDatesTx(ctx context.Context, tx *sql.Tx, id string, start, end time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE demand_stage_periods SET start_date=?, end_date=? WHERE id=?`,
		datemath.Format(start), datemath.Format(end), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProgressPeriodTx returns the demand's synthetic progress period.
func (r Repo) GetProgressPeriodTx(ctx context.Context, tx *sql.Tx, demandID string) (domain.StagePeriod, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM demand_stage_periods WHERE demand_id=? AND stage=?`, demandID, stage.ProgressKey)
	return scanPeriod(row.Scan)
}

// MaxRecordedOrdinalTx derives the demand's current position in the stage
// sequence: nil when no real stage has been recorded yet.
func (r Repo) MaxRecordedOrdinalTx(ctx context.Context, tx *sql.Tx, demandID string) (*int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT stage FROM demand_stage_periods WHERE demand_id=? AND stage<>?`, demandID, stage.ProgressKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var max *int
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		ordinal, err := stage.OrdinalOf(key)
		if err != nil {
			return nil, fmt.Errorf("demand %s: %w", demandID, err)
		}
		if max == nil || ordinal > *max {
			o := ordinal
			max = &o
		}
	}
	return max, rows.Err()
}

func collectPeriods(rows *sql.Rows) ([]domain.StagePeriod, error) {
	var res []domain.StagePeriod
	for rows.Next() {
		p, err := scanPeriod(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
