package server

import (
	"demandline/internal/datemath"
	"demandline/internal/domain"
)

type DemandRequest struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	ExternalID     string `json:"external_id"`
	FileType       string `json:"file_type"`
	FileSubtype    string `json:"file_subtype,omitempty"`
	FileDetail     string `json:"file_detail,omitempty"`
	Amount         string `json:"amount"`
	IOName         string `json:"io_name"`
	StartDate      string `json:"start_date,omitempty" format:"date"`
	DurationMonths *int   `json:"duration_months,omitempty"`
}

type DemandResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ExternalID      string `json:"external_id"`
	FileType        string `json:"file_type"`
	FileSubtype     string `json:"file_subtype,omitempty"`
	FileDetail      string `json:"file_detail,omitempty"`
	Amount          string `json:"amount"`
	IOName          string `json:"io_name"`
	StartDate       string `json:"start_date,omitempty"`
	EndDate         string `json:"end_date,omitempty"`
	DurationMonths  *int   `json:"duration_months,omitempty"`
	WeeklyStartDate string `json:"weekly_start_date,omitempty"`
	WeeklyEndDate   string `json:"weekly_end_date,omitempty"`
	WeeklyStage     string `json:"weekly_stage,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func demandResponse(d domain.Demand) DemandResponse {
	resp := DemandResponse{
		ID:             d.ID,
		Name:           d.Name,
		ExternalID:     d.ExternalID,
		FileType:       d.FileType,
		FileSubtype:    d.FileSubtype,
		FileDetail:     d.FileDetail,
		Amount:         d.Amount.String(),
		IOName:         d.IOName,
		DurationMonths: d.DurationMonths,
		CreatedAt:      d.CreatedAt,
	}
	if d.StartDate != nil {
		resp.StartDate = datemath.Format(*d.StartDate)
	}
	if end := d.EndDate(); end != nil {
		resp.EndDate = datemath.Format(*end)
	}
	if d.WeeklyStartDate != nil {
		resp.WeeklyStartDate = datemath.Format(*d.WeeklyStartDate)
	}
	if d.WeeklyEndDate != nil {
		resp.WeeklyEndDate = datemath.Format(*d.WeeklyEndDate)
	}
	if d.WeeklyStage != nil {
		resp.WeeklyStage = *d.WeeklyStage
	}
	return resp
}

func mapDemands(in []domain.Demand) []DemandResponse {
	res := make([]DemandResponse, 0, len(in))
	for _, d := range in {
		res = append(res, demandResponse(d))
	}
	return res
}

type RecordStageRequest struct {
	Stage     string `json:"stage"`
	StartDate string `json:"start_date" format:"date"`
	EndDate   string `json:"end_date" format:"date"`
}

type PeriodResponse struct {
	ID           string `json:"id"`
	DemandID     string `json:"demand_id"`
	Kind         string `json:"kind"`
	Stage        string `json:"stage,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DurationDays int    `json:"duration_days"`
}

func periodResponse(p domain.StagePeriod) PeriodResponse {
	return PeriodResponse{
		ID:           p.ID,
		DemandID:     p.DemandID,
		Kind:         string(p.Kind),
		Stage:        p.Stage,
		StartDate:    datemath.Format(p.StartDate),
		EndDate:      datemath.Format(p.EndDate),
		DurationDays: p.DurationDays(),
	}
}

func mapPeriods(in []domain.StagePeriod) []PeriodResponse {
	res := make([]PeriodResponse, 0, len(in))
	for _, p := range in {
		res = append(res, periodResponse(p))
	}
	return res
}

type EditDatesRequest struct {
	StartDate string `json:"start_date" format:"date"`
	EndDate   string `json:"end_date" format:"date"`
}

// Weekly request fields stay schema-optional and unformatted: the handlers
// validate them and report failures through AjaxResponse instead of the
// error envelope.
type WeeklyDatesRequest struct {
	WeeklyStartDate string `json:"weekly_start_date,omitempty"`
	WeeklyEndDate   string `json:"weekly_end_date,omitempty"`
}

type WeeklyStageRequest struct {
	WeeklyStage string `json:"weekly_stage,omitempty"`
}

// AjaxResponse is the incremental-update contract: success plus an optional
// user-facing error string, always with HTTP 200.
type AjaxResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json,omitempty"`
}

func mapEvents(in []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(in))
	for _, e := range in {
		res = append(res, EventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			ActorID:    e.ActorID,
			Payload:    e.Payload,
		})
	}
	return res
}
