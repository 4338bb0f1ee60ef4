package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"demandline/internal/datemath"
	"demandline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// IsUniqueViolation reports whether err is a SQLite unique-constraint
// failure, the backstop for two concurrent recordings of the same stage.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const demandColumns = `id,name,external_id,file_type,file_subtype,file_detail,amount,io_name,start_date,duration_months,weekly_start_date,weekly_end_date,weekly_stage,created_at`

func scanDemand(scan func(dest ...any) error) (domain.Demand, error) {
	var d domain.Demand
	var subtype, detail, amount, startDate, weeklyStart, weeklyEnd, weeklyStage sql.NullString
	var duration sql.NullInt64
	err := scan(&d.ID, &d.Name, &d.ExternalID, &d.FileType, &subtype, &detail, &amount, &d.IOName,
		&startDate, &duration, &weeklyStart, &weeklyEnd, &weeklyStage, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if subtype.Valid {
		d.FileSubtype = subtype.String
	}
	if detail.Valid {
		d.FileDetail = detail.String
	}
	if amount.Valid {
		amt, err := decimal.NewFromString(amount.String)
		if err != nil {
			return d, fmt.Errorf("demand %s: bad amount %q: %w", d.ID, amount.String, err)
		}
		d.Amount = amt
	}
	if d.StartDate, err = scanDate(startDate); err != nil {
		return d, fmt.Errorf("demand %s: %w", d.ID, err)
	}
	if duration.Valid {
		n := int(duration.Int64)
		d.DurationMonths = &n
	}
	if d.WeeklyStartDate, err = scanDate(weeklyStart); err != nil {
		return d, fmt.Errorf("demand %s: %w", d.ID, err)
	}
	if d.WeeklyEndDate, err = scanDate(weeklyEnd); err != nil {
		return d, fmt.Errorf("demand %s: %w", d.ID, err)
	}
	if weeklyStage.Valid {
		d.WeeklyStage = &weeklyStage.String
	}
	return d, nil
}

func (r Repo) InsertDemandTx(ctx context.Context, tx *sql.Tx, d domain.Demand) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO demands(`+demandColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.Name, d.ExternalID, d.FileType, nullable(d.FileSubtype), nullable(d.FileDetail),
		d.Amount.String(), d.IOName, nullableDate(d.StartDate), nullableIntPtr(d.DurationMonths),
		nullableDate(d.WeeklyStartDate), nullableDate(d.WeeklyEndDate), nullableStringPtr(d.WeeklyStage), d.CreatedAt)
	return err
}

func (r Repo) UpdateDemandTx(ctx context.Context, tx *sql.Tx, d domain.Demand) error {
	res, err := tx.ExecContext(ctx, `UPDATE demands SET name=?, external_id=?, file_type=?, file_subtype=?, file_detail=?, amount=?, io_name=?, start_date=?, duration_months=? WHERE id=?`,
		d.Name, d.ExternalID, d.FileType, nullable(d.FileSubtype), nullable(d.FileDetail),
		d.Amount.String(), d.IOName, nullableDate(d.StartDate), nullableIntPtr(d.DurationMonths), d.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateWeeklyDatesTx(ctx context.Context, tx *sql.Tx, id string, start, end time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE demands SET weekly_start_date=?, weekly_end_date=? WHERE id=?`,
		datemath.Format(start), datemath.Format(end), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateWeeklyStageTx(ctx context.Context, tx *sql.Tx, id, stageKey string) error {
	res, err := tx.ExecContext(ctx, `UPDATE demands SET weekly_stage=? WHERE id=?`, stageKey, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetDemand(ctx context.Context, id string) (domain.Demand, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+demandColumns+` FROM demands WHERE id=?`, id)
	return scanDemand(row.Scan)
}

func (r Repo) GetDemandTx(ctx context.Context, tx *sql.Tx, id string) (domain.Demand, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+demandColumns+` FROM demands WHERE id=?`, id)
	return scanDemand(row.Scan)
}

func (r Repo) ListDemands(ctx context.Context) ([]domain.Demand, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+demandColumns+` FROM demands ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Demand
	for rows.Next() {
		d, err := scanDemand(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) DeleteDemandTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM demands WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDate(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := datemath.Parse(v.String)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", v.String, err)
	}
	return &t, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDate(v *time.Time) any {
	if v == nil {
		return nil
	}
	return datemath.Format(*v)
}
