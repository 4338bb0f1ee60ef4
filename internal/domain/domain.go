package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"demandline/internal/datemath"
)

// PeriodKind distinguishes real lifecycle stage periods from the synthetic
// full-duration progress bar.
type PeriodKind string

const (
	PeriodReal     PeriodKind = "real"
	PeriodProgress PeriodKind = "progress"
)

type Demand struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	ExternalID     string          `json:"external_id"`
	FileType       string          `json:"file_type"`
	FileSubtype    string          `json:"file_subtype,omitempty"`
	FileDetail     string          `json:"file_detail,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	IOName         string          `json:"io_name"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	DurationMonths *int            `json:"duration_months,omitempty"`

	// Weekly-report fields updated through the incremental endpoints.
	WeeklyStartDate *time.Time `json:"weekly_start_date,omitempty"`
	WeeklyEndDate   *time.Time `json:"weekly_end_date,omitempty"`
	WeeklyStage     *string    `json:"weekly_stage,omitempty"`

	CreatedAt string `json:"created_at" format:"date-time"`
}

// EndDate derives the demand's end date from its start date and duration.
// Nil when either input is missing.
func (d Demand) EndDate() *time.Time {
	if d.StartDate == nil || d.DurationMonths == nil {
		return nil
	}
	end := datemath.EndDate(*d.StartDate, *d.DurationMonths)
	return &end
}

type StagePeriod struct {
	ID        string     `json:"id"`
	DemandID  string     `json:"demand_id"`
	Kind      PeriodKind `json:"kind"`
	Stage     string     `json:"stage,omitempty"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
}

// DurationDays is the inclusive day count of the period.
func (p StagePeriod) DurationDays() int {
	return datemath.DaysBetween(p.StartDate, p.EndDate)
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
