package demandlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Demandline HTTP API client.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Demand represents the API demand model.
type Demand struct {
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

// DemandParams carries the writable demand fields.
type DemandParams struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	ExternalID     string `json:"external_id"`
	FileType       string `json:"file_type"`
	FileSubtype    string `json:"file_subtype,omitempty"`
	FileDetail     string `json:"file_detail,omitempty"`
	Amount         string `json:"amount"`
	IOName         string `json:"io_name"`
	StartDate      string `json:"start_date,omitempty"`
	DurationMonths *int   `json:"duration_months,omitempty"`
}

// Period represents a recorded stage period or the synthetic progress period.
type Period struct {
	ID           string `json:"id"`
	DemandID     string `json:"demand_id"`
	Kind         string `json:"kind"`
	Stage        string `json:"stage,omitempty"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DurationDays int    `json:"duration_days"`
}

// Stage is one entry of the ordered lifecycle catalog.
type Stage struct {
	Key     string `json:"key"`
	Label   string `json:"label"`
	Color   string `json:"color"`
	Ordinal int    `json:"ordinal"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json,omitempty"`
}

// AjaxResult mirrors the weekly-update contract: success plus an optional
// user-facing error string, delivered with HTTP 200.
type AjaxResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateDemand creates a demand.
func (c *Client) CreateDemand(ctx context.Context, params DemandParams) (Demand, error) {
	var resp Demand
	err := c.do(ctx, http.MethodPost, "v0/demands", params, &resp)
	return resp, err
}

// ListDemands returns all demands.
func (c *Client) ListDemands(ctx context.Context) ([]Demand, error) {
	var resp []Demand
	err := c.do(ctx, http.MethodGet, "v0/demands", nil, &resp)
	return resp, err
}

// GetDemand fetches a demand by id.
func (c *Client) GetDemand(ctx context.Context, id string) (Demand, error) {
	var resp Demand
	err := c.do(ctx, http.MethodGet, "v0/demands/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateDemand replaces a demand's editable fields.
func (c *Client) UpdateDemand(ctx context.Context, id string, params DemandParams) (Demand, error) {
	var resp Demand
	err := c.do(ctx, http.MethodPatch, "v0/demands/"+url.PathEscape(id), params, &resp)
	return resp, err
}

// DeleteDemand removes a demand and all its stage periods.
func (c *Client) DeleteDemand(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/demands/"+url.PathEscape(id), nil, nil)
}

// RecordStage records the demand's next lifecycle stage.
func (c *Client) RecordStage(ctx context.Context, demandID, stage, startDate, endDate string) (Period, error) {
	body := map[string]any{
		"stage":      stage,
		"start_date": startDate,
		"end_date":   endDate,
	}
	var resp Period
	endpoint := fmt.Sprintf("v0/demands/%s/stages", url.PathEscape(demandID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ListStages returns the demand's stage periods.
func (c *Client) ListStages(ctx context.Context, demandID string) ([]Period, error) {
	var resp []Period
	endpoint := fmt.Sprintf("v0/demands/%s/stages", url.PathEscape(demandID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// EditPeriodDates corrects a stage period's dates.
func (c *Client) EditPeriodDates(ctx context.Context, periodID, startDate, endDate string) (Period, error) {
	body := map[string]any{
		"start_date": startDate,
		"end_date":   endDate,
	}
	var resp Period
	endpoint := fmt.Sprintf("v0/periods/%s/dates", url.PathEscape(periodID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// UpdateWeeklyDates sets the demand's weekly-report interval.
func (c *Client) UpdateWeeklyDates(ctx context.Context, demandID, startDate, endDate string) (AjaxResult, error) {
	body := map[string]any{
		"weekly_start_date": startDate,
		"weekly_end_date":   endDate,
	}
	var resp AjaxResult
	endpoint := fmt.Sprintf("v0/demands/%s/weekly-dates", url.PathEscape(demandID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// UpdateWeeklyStage sets the demand's weekly-report stage.
func (c *Client) UpdateWeeklyStage(ctx context.Context, demandID, stage string) (AjaxResult, error) {
	body := map[string]any{"weekly_stage": stage}
	var resp AjaxResult
	endpoint := fmt.Sprintf("v0/demands/%s/weekly-stage", url.PathEscape(demandID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Timeline returns the raw Gantt render model.
func (c *Client) Timeline(ctx context.Context) (json.RawMessage, error) {
	var resp json.RawMessage
	err := c.do(ctx, http.MethodGet, "v0/timeline", nil, &resp)
	return resp, err
}

// Stages returns the ordered stage catalog.
func (c *Client) Stages(ctx context.Context) ([]Stage, error) {
	var resp []Stage
	err := c.do(ctx, http.MethodGet, "v0/stages", nil, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
