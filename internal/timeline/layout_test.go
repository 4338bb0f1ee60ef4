package timeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandline/internal/datemath"
	"demandline/internal/domain"
	"demandline/internal/stage"
	"demandline/internal/timeline"
)

func testOptions() timeline.Options {
	return timeline.Options{
		Anchor:        timeline.Anchor{Year: 2025, UnitsPerYear: 20},
		FallbackStart: datemath.Date(2025, time.January, 1),
	}
}

func demandWith(id string, start time.Time, months int) domain.Demand {
	return domain.Demand{
		ID:             id,
		Name:           "Demand " + id,
		StartDate:      &start,
		DurationMonths: &months,
	}
}

func TestComputeEmptyInput(t *testing.T) {
	m := timeline.Compute(nil, testOptions())
	assert.Empty(t, m.Demands)
	assert.Empty(t, m.GlobalStart)
	assert.Len(t, m.Legend, stage.Count)
	assert.False(t, m.Degenerate)
}

func TestGlobalRangeSnapsToWholeYears(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	in := []timeline.Input{{Demand: demandWith("d1", start, 6)}}

	m := timeline.Compute(in, testOptions())
	assert.Equal(t, "2025-01-01", m.GlobalStart)
	assert.Equal(t, "2025-12-31", m.GlobalEnd)
}

func TestGlobalRangeCoversPeriodsBeyondDemandDates(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	in := []timeline.Input{{
		Demand: demandWith("d1", start, 6),
		Periods: []domain.StagePeriod{{
			ID: "p1", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
			StartDate: datemath.Date(2024, time.November, 1),
			EndDate:   datemath.Date(2026, time.February, 1),
		}},
	}}

	m := timeline.Compute(in, testOptions())
	assert.Equal(t, "2024-01-01", m.GlobalStart)
	assert.Equal(t, "2026-12-31", m.GlobalEnd)
}

func TestMarkers(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	m := timeline.Compute([]timeline.Input{{Demand: demandWith("d1", start, 6)}}, testOptions())

	require.Len(t, m.Years, 1)
	assert.Equal(t, "2025", m.Years[0].Label)
	assert.InDelta(t, 0, m.Years[0].Position, 1e-9)

	require.Len(t, m.Quarters, 4)
	assert.Equal(t, "Q1", m.Quarters[0].Label)
	assert.Equal(t, "Q4", m.Quarters[3].Label)
	assert.Equal(t, "2025-10-01", m.Quarters[3].Date)

	require.Len(t, m.Months, 12)
	assert.Equal(t, "Jan", m.Months[0].Label)
	assert.Equal(t, "Dec", m.Months[11].Label)

	prev := -1.0
	for _, mk := range m.Months {
		assert.Greater(t, mk.Position, prev)
		assert.GreaterOrEqual(t, mk.Position, 0.0)
		assert.LessOrEqual(t, mk.Position, 100.0)
		prev = mk.Position
	}
}

func TestDemandGeometry(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	m := timeline.Compute([]timeline.Input{{Demand: demandWith("d1", start, 6)}}, testOptions())

	require.Len(t, m.Demands, 1)
	pos := m.Demands[0].Position
	assert.Equal(t, "2025-03-10", pos.StartDate)
	assert.Equal(t, "2025-09-10", pos.EndDate)
	assert.Equal(t, 185, pos.DurationDays)
	assert.InDelta(t, 68.0/365*100, pos.StartPercent, 1e-9)
	assert.InDelta(t, 185.0/365*100, pos.WidthPercent, 1e-9)
}

func TestSingleDayDemandKeepsMinimumWidth(t *testing.T) {
	day := datemath.Date(2025, time.June, 1)
	in := []timeline.Input{{
		Demand: domain.Demand{ID: "d1", Name: "tiny"},
		Periods: []domain.StagePeriod{{
			ID: "p1", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
			StartDate: day, EndDate: day,
		}},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	assert.InDelta(t, 0.5, m.Demands[0].Position.WidthPercent, 1e-9)
}

func TestDemandWithoutDatesBorrowsPeriodExtent(t *testing.T) {
	in := []timeline.Input{{
		Demand: domain.Demand{ID: "d1", Name: "undated"},
		Periods: []domain.StagePeriod{
			{ID: "p1", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
				StartDate: datemath.Date(2025, time.February, 1), EndDate: datemath.Date(2025, time.March, 1)},
			{ID: "p2", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_initiated",
				StartDate: datemath.Date(2025, time.March, 1), EndDate: datemath.Date(2025, time.May, 1)},
		},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	assert.Equal(t, "2025-02-01", m.Demands[0].Position.StartDate)
	assert.Equal(t, "2025-05-01", m.Demands[0].Position.EndDate)
}

func TestDemandWithoutAnyDatesIsSkipped(t *testing.T) {
	in := []timeline.Input{
		{Demand: domain.Demand{ID: "d1", Name: "empty"}},
		{Demand: demandWith("d2", datemath.Date(2025, time.March, 1), 3)},
	}
	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	assert.Equal(t, "d2", m.Demands[0].Demand.ID)
}

func TestStageBarGeometryComposesThroughDemandBar(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	in := []timeline.Input{{
		Demand: demandWith("d1", start, 6),
		Periods: []domain.StagePeriod{{
			ID: "p1", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
			StartDate: start, EndDate: datemath.Date(2025, time.April, 10),
		}},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	row := m.Demands[0]
	require.Len(t, row.Bars, 1)
	b := row.Bars[0]

	assert.Equal(t, "demand_to_be_initiated", b.Stage)
	require.NotNil(t, b.Ordinal)
	assert.Equal(t, 0, *b.Ordinal)
	assert.Equal(t, 32, b.DurationDays)
	assert.InDelta(t, 0, b.RelativeStartPercent, 1e-9)
	assert.InDelta(t, 32.0/185*100, b.RelativeWidthPercent, 1e-9)
	assert.InDelta(t, row.Position.StartPercent, b.StartPercent, 1e-9)
	assert.InDelta(t, row.Position.WidthPercent*32/185, b.WidthPercent, 1e-9)
	assert.Equal(t, 0, b.StartQuarter)
	assert.Equal(t, 1, b.EndQuarter)
	assert.True(t, b.ShowNumber)
}

func TestUnknownStageKeyIsSkippedNotFatal(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	in := []timeline.Input{{
		Demand: demandWith("d1", start, 6),
		Periods: []domain.StagePeriod{
			{ID: "p1", DemandID: "d1", Kind: domain.PeriodReal, Stage: "not_a_stage",
				StartDate: start, EndDate: datemath.Date(2025, time.April, 10)},
			{ID: "p2", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
				StartDate: start, EndDate: datemath.Date(2025, time.April, 10)},
		},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	require.Len(t, m.Demands[0].Bars, 1)
	assert.Equal(t, "p2", m.Demands[0].Bars[0].ID)
}

func TestBarsSortedByStartDate(t *testing.T) {
	start := datemath.Date(2025, time.January, 1)
	in := []timeline.Input{{
		Demand: demandWith("d1", start, 12),
		Periods: []domain.StagePeriod{
			{ID: "p2", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_initiated",
				StartDate: datemath.Date(2025, time.March, 1), EndDate: datemath.Date(2025, time.April, 1)},
			{ID: "p1", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
				StartDate: start, EndDate: datemath.Date(2025, time.March, 1)},
		},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	bars := m.Demands[0].Bars
	for i := 1; i < len(bars); i++ {
		assert.LessOrEqual(t, bars[i-1].StartDate, bars[i].StartDate)
	}
	assert.Equal(t, "p1", bars[0].ID)
}

func TestDetailBoxes(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	in := []timeline.Input{{
		Demand: demandWith("d1", start, 6),
		Periods: []domain.StagePeriod{{
			ID: "p1", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
			StartDate: start, EndDate: datemath.Date(2025, time.April, 10),
		}},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	boxes := m.Demands[0].DetailBoxes
	require.Len(t, boxes, stage.Count)

	assert.Equal(t, 0, boxes[0].Ordinal)
	assert.Equal(t, 32, boxes[0].DurationDays)
	assert.Equal(t, "p1", boxes[0].SourceID)
	s, err := stage.ByOrdinal(0)
	require.NoError(t, err)
	assert.Equal(t, s.Color, boxes[0].Color)

	for _, box := range boxes[1:] {
		assert.Equal(t, stage.PlaceholderColor, box.Color, "ordinal %d", box.Ordinal)
		assert.Equal(t, 0, box.DurationDays, "ordinal %d", box.Ordinal)
		assert.Empty(t, box.SourceID, "ordinal %d", box.Ordinal)
	}
}
