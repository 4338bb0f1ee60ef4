package timeline

import (
	"demandline/internal/domain"
	"demandline/internal/stage"
)

// Marker is one grid line on the global timeline.
type Marker struct {
	Date     string  `json:"date,omitempty"`
	Label    string  `json:"label"`
	Position float64 `json:"position"`
	Year     int     `json:"year,omitempty"`
}

// Segment names which half of a split progress bar a Bar renders.
type Segment string

const (
	SegmentCompleted Segment = "completed"
	SegmentRemaining Segment = "remaining"
)

// Bar is one rendered interval inside a demand row. Real stage periods map
// to one bar each; the synthetic progress period maps to one or two bars
// depending on the demand's current stage.
type Bar struct {
	ID      string            `json:"id"`
	Kind    domain.PeriodKind `json:"kind"`
	Segment Segment           `json:"segment,omitempty"`
	Stage   string            `json:"stage,omitempty"`
	Ordinal *int              `json:"ordinal,omitempty"`
	Label   string            `json:"label"`
	Color   string            `json:"color"`

	// Global-percent geometry: position within the whole timeline, composed
	// through the owning demand's bar.
	StartPercent float64 `json:"start_percent"`
	WidthPercent float64 `json:"width_percent"`
	// Relative geometry: position within the owning demand's bar.
	RelativeStartPercent float64 `json:"relative_start_percent"`
	RelativeWidthPercent float64 `json:"relative_width_percent"`

	DurationDays int    `json:"duration_days"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	StartQuarter int    `json:"start_quarter"`
	EndQuarter   int    `json:"end_quarter"`

	// Anchor-coordinate metadata (secondary projection, not used for the
	// bar's visual placement).
	AnchorStart float64 `json:"anchor_start"`
	AnchorEnd   float64 `json:"anchor_end"`
	AnchorWidth float64 `json:"anchor_width"`

	ShowNumber bool `json:"show_number"`
}

// DetailBox is one of the 26 per-ordinal summary cells under a demand row.
type DetailBox struct {
	Ordinal      int    `json:"ordinal"`
	DurationDays int    `json:"duration_days"`
	Color        string `json:"color"`
	SourceID     string `json:"source_id,omitempty"`
}

// Geometry is a demand bar's own placement on the global timeline.
type Geometry struct {
	StartPercent float64 `json:"start_percent"`
	WidthPercent float64 `json:"width_percent"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	DurationDays int     `json:"duration_days"`
}

// Row is one demand with its rendered bars and detail boxes.
type Row struct {
	Demand      domain.Demand `json:"demand"`
	Position    Geometry      `json:"position"`
	Bars        []Bar         `json:"bars"`
	DetailBoxes []DetailBox   `json:"detail_boxes"`
}

// RenderModel is everything a front end needs to draw the chart.
type RenderModel struct {
	GlobalStart string        `json:"global_start,omitempty"`
	GlobalEnd   string        `json:"global_end,omitempty"`
	Years       []Marker      `json:"years"`
	Quarters    []Marker      `json:"quarters"`
	Months      []Marker      `json:"months"`
	Demands     []Row         `json:"demands"`
	Legend      []stage.Stage `json:"legend"`
	// Degenerate is set when demands exist but the computed span collapses
	// to zero or negative days; the model is then empty rather than divided
	// by zero.
	Degenerate bool `json:"degenerate,omitempty"`
}
