package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"demandline/internal/config"
	"demandline/internal/datemath"
	"demandline/internal/domain"
	"demandline/internal/events"
	"demandline/internal/repo"
	"demandline/internal/sequence"
	"demandline/internal/stage"
	"demandline/internal/timeline"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// DemandOptions are parameters for creating or updating a demand.
type DemandOptions struct {
	ID             string
	Name           string
	ExternalID     string
	FileType       string
	FileSubtype    string
	FileDetail     string
	Amount         string
	IOName         string
	StartDate      *time.Time
	DurationMonths *int
	ActorID        string
}

func (opts DemandOptions) validate() (decimal.Decimal, error) {
	if opts.Name == "" {
		return decimal.Decimal{}, MissingRequiredFieldError{Field: "name"}
	}
	if opts.ExternalID == "" {
		return decimal.Decimal{}, MissingRequiredFieldError{Field: "external_id"}
	}
	if opts.FileType == "" {
		return decimal.Decimal{}, MissingRequiredFieldError{Field: "file_type"}
	}
	if opts.IOName == "" {
		return decimal.Decimal{}, MissingRequiredFieldError{Field: "io_name"}
	}
	if opts.FileSubtype == "Project" && opts.FileDetail == "" {
		return decimal.Decimal{}, MissingRequiredFieldError{Field: "file_detail", Reason: "file subtype is Project"}
	}
	if opts.DurationMonths != nil && *opts.DurationMonths < 1 {
		return decimal.Decimal{}, fmt.Errorf("duration_months must be at least 1, got %d", *opts.DurationMonths)
	}
	if opts.Amount == "" {
		return decimal.Decimal{}, MissingRequiredFieldError{Field: "amount"}
	}
	amount, err := decimal.NewFromString(opts.Amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", opts.Amount, err)
	}
	return amount, nil
}

// CreateDemand creates a demand and, when its dates are known, the synthetic
// progress period spanning its full derived duration.
func (e Engine) CreateDemand(ctx context.Context, opts DemandOptions) (domain.Demand, error) {
	amount, err := opts.validate()
	if err != nil {
		return domain.Demand{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.ExternalID+"|"+opts.Name+"|"+now)).String()
	}
	d := domain.Demand{
		ID:             id,
		Name:           opts.Name,
		ExternalID:     opts.ExternalID,
		FileType:       opts.FileType,
		FileSubtype:    opts.FileSubtype,
		FileDetail:     opts.FileDetail,
		Amount:         amount,
		IOName:         opts.IOName,
		StartDate:      opts.StartDate,
		DurationMonths: opts.DurationMonths,
		CreatedAt:      now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Demand{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertDemandTx(ctx, tx, d); err != nil {
		return domain.Demand{}, fmt.Errorf("insert demand: %w", err)
	}
	if err := e.resyncProgressTx(ctx, tx, d); err != nil {
		return domain.Demand{}, err
	}
	if err := e.Events.Append(ctx, tx, "demand.created", "demand", d.ID, opts.ActorID, events.EventPayload{
		"name":        d.Name,
		"external_id": d.ExternalID,
	}); err != nil {
		return domain.Demand{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Demand{}, err
	}
	return d, nil
}

// UpdateDemand replaces a demand's editable fields and resyncs the synthetic
// progress period from the new dates.
func (e Engine) UpdateDemand(ctx context.Context, opts DemandOptions) (domain.Demand, error) {
	if opts.ID == "" {
		return domain.Demand{}, MissingRequiredFieldError{Field: "id"}
	}
	amount, err := opts.validate()
	if err != nil {
		return domain.Demand{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Demand{}, err
	}
	defer tx.Rollback()

	d, err := e.Repo.GetDemandTx(ctx, tx, opts.ID)
	if err != nil {
		return domain.Demand{}, err
	}
	d.Name = opts.Name
	d.ExternalID = opts.ExternalID
	d.FileType = opts.FileType
	d.FileSubtype = opts.FileSubtype
	d.FileDetail = opts.FileDetail
	d.Amount = amount
	d.IOName = opts.IOName
	d.StartDate = opts.StartDate
	d.DurationMonths = opts.DurationMonths

	if err := e.Repo.UpdateDemandTx(ctx, tx, d); err != nil {
		return domain.Demand{}, fmt.Errorf("update demand: %w", err)
	}
	if err := e.resyncProgressTx(ctx, tx, d); err != nil {
		return domain.Demand{}, err
	}
	if err := e.Events.Append(ctx, tx, "demand.updated", "demand", d.ID, opts.ActorID, events.EventPayload{
		"name": d.Name,
	}); err != nil {
		return domain.Demand{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Demand{}, err
	}
	return d, nil
}

// DeleteDemand removes a demand; the schema cascades to its periods.
func (e Engine) DeleteDemand(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteDemandTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "demand.deleted", "demand", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordStage validates the requested stage against the demand's recorded
// sequence, persists the new period, and resyncs the synthetic progress
// period from the demand's own dates.
func (e Engine) RecordStage(ctx context.Context, demandID, stageKey string, start, end time.Time, actorID string) (domain.StagePeriod, error) {
	s, err := stage.ByKey(stageKey)
	if err != nil {
		return domain.StagePeriod{}, err
	}
	if end.Before(start) {
		return domain.StagePeriod{}, ErrInvalidDateRange
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StagePeriod{}, err
	}
	defer tx.Rollback()

	d, err := e.Repo.GetDemandTx(ctx, tx, demandID)
	if err != nil {
		return domain.StagePeriod{}, err
	}
	maxRecorded, err := e.Repo.MaxRecordedOrdinalTx(ctx, tx, demandID)
	if err != nil {
		return domain.StagePeriod{}, err
	}
	if err := sequence.Validate(maxRecorded, s.Ordinal); err != nil {
		return domain.StagePeriod{}, err
	}

	p := domain.StagePeriod{
		ID:        uuid.New().String(),
		DemandID:  demandID,
		Kind:      domain.PeriodReal,
		Stage:     s.Key,
		StartDate: start,
		EndDate:   end,
	}
	if err := e.Repo.InsertPeriodTx(ctx, tx, p); err != nil {
		// Two concurrent recordings read the same prior max and insert the
		// same ordinal; the unique index makes the second one lose.
		if repo.IsUniqueViolation(err) {
			return domain.StagePeriod{}, ConflictError{DemandID: demandID, Stage: s.Key}
		}
		return domain.StagePeriod{}, fmt.Errorf("insert period: %w", err)
	}
	if err := e.resyncProgressTx(ctx, tx, d); err != nil {
		return domain.StagePeriod{}, err
	}
	if err := e.Events.Append(ctx, tx, "stage.recorded", "demand", demandID, actorID, events.EventPayload{
		"stage":   s.Key,
		"ordinal": s.Ordinal,
	}); err != nil {
		return domain.StagePeriod{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StagePeriod{}, err
	}
	return p, nil
}

// EditPeriodDates corrects a period's dates. This is independent of stage
// sequencing and applies to real and synthetic periods alike.
func (e Engine) EditPeriodDates(ctx context.Context, periodID string, start, end time.Time, actorID string) (domain.StagePeriod, error) {
	if end.Before(start) {
		return domain.StagePeriod{}, ErrInvalidDateRange
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.StagePeriod{}, err
	}
	defer tx.Rollback()

	p, err := e.Repo.GetPeriodTx(ctx, tx, periodID)
	if err != nil {
		return domain.StagePeriod{}, err
	}
	if err := e.Repo.UpdatePeriodDatesTx(ctx, tx, periodID, start, end); err != nil {
		return domain.StagePeriod{}, err
	}
	p.StartDate = start
	p.EndDate = end
	if err := e.Events.Append(ctx, tx, "stage.dates_edited", "period", periodID, actorID, events.EventPayload{
		"demand_id":  p.DemandID,
		"start_date": datemath.Format(start),
		"end_date":   datemath.Format(end),
	}); err != nil {
		return domain.StagePeriod{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.StagePeriod{}, err
	}
	return p, nil
}

// UpdateWeeklyDates sets the demand's weekly-report interval.
func (e Engine) UpdateWeeklyDates(ctx context.Context, demandID string, start, end time.Time, actorID string) error {
	if end.Before(start) {
		return ErrInvalidDateRange
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateWeeklyDatesTx(ctx, tx, demandID, start, end); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "demand.weekly_update", "demand", demandID, actorID, events.EventPayload{
		"weekly_start_date": datemath.Format(start),
		"weekly_end_date":   datemath.Format(end),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateWeeklyStage sets the demand's weekly-report stage. Unlike RecordStage
// this is a free-form pointer and bypasses sequencing, but the key must exist.
func (e Engine) UpdateWeeklyStage(ctx context.Context, demandID, stageKey, actorID string) error {
	if _, err := stage.ByKey(stageKey); err != nil {
		return err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateWeeklyStageTx(ctx, tx, demandID, stageKey); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "demand.weekly_update", "demand", demandID, actorID, events.EventPayload{
		"weekly_stage": stageKey,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// Timeline loads every demand with its periods and computes the render model.
func (e Engine) Timeline(ctx context.Context) (*timeline.RenderModel, error) {
	demands, err := e.Repo.ListDemands(ctx)
	if err != nil {
		return nil, err
	}
	periods, err := e.Repo.ListAllPeriods(ctx)
	if err != nil {
		return nil, err
	}
	inputs := make([]timeline.Input, 0, len(demands))
	for _, d := range demands {
		inputs = append(inputs, timeline.Input{Demand: d, Periods: periods[d.ID]})
	}
	return timeline.Compute(inputs, e.timelineOptions()), nil
}

func (e Engine) timelineOptions() timeline.Options {
	cfg := e.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return timeline.Options{
		Anchor: timeline.Anchor{
			Year:         cfg.Display.AnchorYear,
			UnitsPerYear: cfg.Display.UnitsPerYear,
		},
		FallbackStart: cfg.FallbackStartDate(),
	}
}

// resyncProgressTx rewrites the synthetic progress period from the demand's
// own dates, creating it when absent. Demands without dates keep whatever
// period they have.
func (e Engine) resyncProgressTx(ctx context.Context, tx *sql.Tx, d domain.Demand) error {
	if d.StartDate == nil || d.DurationMonths == nil {
		return nil
	}
	end := datemath.EndDate(*d.StartDate, *d.DurationMonths)

	existing, err := e.Repo.GetProgressPeriodTx(ctx, tx, d.ID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if errors.Is(err, repo.ErrNotFound) {
		p := domain.StagePeriod{
			ID:        uuid.New().String(),
			DemandID:  d.ID,
			Kind:      domain.PeriodProgress,
			StartDate: *d.StartDate,
			EndDate:   end,
		}
		if err := e.Repo.InsertPeriodTx(ctx, tx, p); err != nil {
			return fmt.Errorf("insert progress period: %w", err)
		}
		return nil
	}
	return e.Repo.UpdatePeriodDatesTx(ctx, tx, existing.ID, *d.StartDate, end)
}
