// Package stage holds the fixed lifecycle catalog every demand progresses
// through. The catalog order is the business sequence; ordinals are the
// sequencing contract for stored data and must never be reassigned.
package stage

import (
	"errors"
	"fmt"
)

// ProgressKey is the reserved storage key for the synthetic full-duration
// progress bar. It is not a real stage: it never appears in the catalog,
// in sequence validation, or in legends.
const ProgressKey = "mini_progress"

// ProgressColor is the neutral dark grey used for the synthetic bar and for
// the "remaining" segment of a split progress bar.
const ProgressColor = "#444444"

// PlaceholderColor is the neutral light grey for detail boxes with no
// recorded stage.
const PlaceholderColor = "#ddd"

// ErrUnknownStage reports a key outside the fixed catalog.
var ErrUnknownStage = errors.New("unknown stage")

// Stage is one catalog entry.
type Stage struct {
	Key     string `json:"key"`
	Ordinal int    `json:"ordinal"`
	Label   string `json:"label"`
	Color   string `json:"color"`
}

// Count is the number of real stages in the catalog.
const Count = 26

var catalog = [Count]Stage{
	{Key: "demand_to_be_initiated", Ordinal: 0, Label: "Demand to be Initiated", Color: "#1f78b4"},
	{Key: "demand_initiated", Ordinal: 1, Label: "Demand Initiated", Color: "#33a02c"},
	{Key: "spc_cleared", Ordinal: 2, Label: "SPC Cleared", Color: "#fb9a99"},
	{Key: "demand_approved", Ordinal: 3, Label: "Demand Approved", Color: "#e31a1c"},
	{Key: "tender_enquiry_floated", Ordinal: 4, Label: "Tender Enquiry Floated", Color: "#fdbf6f"},
	{Key: "receipt_of_quotations", Ordinal: 5, Label: "Receipt of Quotations", Color: "#ff7f00"},
	{Key: "tender_opening", Ordinal: 6, Label: "Tender Opening", Color: "#cab2d6"},
	{Key: "tcec_approved", Ordinal: 7, Label: "TCEC Approved", Color: "#6a3d9a"},
	{Key: "tpc_approved", Ordinal: 8, Label: "TPC Approved", Color: "#b2df8a"},
	{Key: "financial_sanction", Ordinal: 9, Label: "Financial Sanction", Color: "#a6cee3"},
	{Key: "order_placement", Ordinal: 10, Label: "Order Placement", Color: "#1f78b4"},
	{Key: "pdr", Ordinal: 11, Label: "PDR", Color: "#33a02c"},
	{Key: "so_for_critical_bom_by_dev_partner", Ordinal: 12, Label: "SO for Critical BoM by Dev Partner", Color: "#fb9a99"},
	{Key: "ddr", Ordinal: 13, Label: "DDR", Color: "#e31a1c"},
	{Key: "cdr", Ordinal: 14, Label: "CDR", Color: "#fdbf6f"},
	{Key: "acceptance_of_critical_bom_by_dev_partner", Ordinal: 15, Label: "Acceptance of Critical BoM by Dev Partner", Color: "#ff7f00"},
	{Key: "realization_completed", Ordinal: 16, Label: "Realization Completed", Color: "#cab2d6"},
	{Key: "fat_completed", Ordinal: 17, Label: "FAT Completed", Color: "#6a3d9a"},
	{Key: "atp_qtp_completed", Ordinal: 18, Label: "ATP/QTP Completed", Color: "#b2df8a"},
	{Key: "delivery_at_stores", Ordinal: 19, Label: "Delivery at Stores", Color: "#a6cee3"},
	{Key: "sat_soft", Ordinal: 20, Label: "SAT/SoFT", Color: "#1f78b4"},
	{Key: "inward_inspection_clearance", Ordinal: 21, Label: "Inward Inspection Clearance", Color: "#33a02c"},
	{Key: "payment_process", Ordinal: 22, Label: "Payment Process", Color: "#fb9a99"},
	{Key: "partially_paid", Ordinal: 23, Label: "Partially Paid", Color: "#e31a1c"},
	{Key: "payment_released", Ordinal: 24, Label: "Payment Released", Color: "#fdbf6f"},
	{Key: "available_for_integration", Ordinal: 25, Label: "Available for Integration", Color: "#ff7f00"},
}

var byKey = func() map[string]Stage {
	m := make(map[string]Stage, Count)
	for _, s := range catalog {
		m[s.Key] = s
	}
	return m
}()

// All returns the catalog in business order.
func All() []Stage {
	out := make([]Stage, Count)
	copy(out[:], catalog[:])
	return out
}

// ByKey looks up a catalog entry.
func ByKey(key string) (Stage, error) {
	s, ok := byKey[key]
	if !ok {
		return Stage{}, fmt.Errorf("%w: %s", ErrUnknownStage, key)
	}
	return s, nil
}

// ByOrdinal looks up a catalog entry by its sequence position.
func ByOrdinal(ordinal int) (Stage, error) {
	if ordinal < 0 || ordinal >= Count {
		return Stage{}, fmt.Errorf("%w: ordinal %d", ErrUnknownStage, ordinal)
	}
	return catalog[ordinal], nil
}

// OrdinalOf returns the sequence position of a stage key.
func OrdinalOf(key string) (int, error) {
	s, err := ByKey(key)
	if err != nil {
		return 0, err
	}
	return s.Ordinal, nil
}

// LabelOf returns the display label of a stage key.
func LabelOf(key string) (string, error) {
	s, err := ByKey(key)
	if err != nil {
		return "", err
	}
	return s.Label, nil
}

// ColorOf returns the display color of a stage key.
func ColorOf(key string) (string, error) {
	s, err := ByKey(key)
	if err != nil {
		return "", err
	}
	return s.Color, nil
}

// IsKnown reports whether key names a real catalog stage.
func IsKnown(key string) bool {
	_, ok := byKey[key]
	return ok
}
