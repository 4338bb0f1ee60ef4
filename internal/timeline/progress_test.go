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

func progressPeriod(demandID string, start, end time.Time) domain.StagePeriod {
	return domain.StagePeriod{
		ID: demandID + "_prog", DemandID: demandID, Kind: domain.PeriodProgress,
		StartDate: start, EndDate: end,
	}
}

func TestProgressBarWithoutStagesStaysWhole(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	end := datemath.Date(2025, time.September, 10)
	in := []timeline.Input{{
		Demand:  demandWith("d1", start, 6),
		Periods: []domain.StagePeriod{progressPeriod("d1", start, end)},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	bars := m.Demands[0].Bars
	require.Len(t, bars, 1)

	b := bars[0]
	assert.Equal(t, domain.PeriodProgress, b.Kind)
	assert.Empty(t, b.Segment)
	assert.Equal(t, "Duration", b.Label)
	assert.Equal(t, stage.ProgressColor, b.Color)
	assert.Nil(t, b.Ordinal)
	assert.False(t, b.ShowNumber)
	assert.InDelta(t, m.Demands[0].Position.WidthPercent, b.WidthPercent, 1e-9)
}

func TestProgressBarSplitsAtCurrentStageEnd(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	end := datemath.Date(2025, time.September, 10)
	stageEnd := datemath.Date(2025, time.April, 10)
	in := []timeline.Input{{
		Demand: demandWith("d1", start, 6),
		Periods: []domain.StagePeriod{
			progressPeriod("d1", start, end),
			{ID: "p0", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
				StartDate: start, EndDate: stageEnd},
		},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	row := m.Demands[0]

	var completed, remaining *timeline.Bar
	for i := range row.Bars {
		switch row.Bars[i].Segment {
		case timeline.SegmentCompleted:
			completed = &row.Bars[i]
		case timeline.SegmentRemaining:
			remaining = &row.Bars[i]
		}
	}
	require.NotNil(t, completed)
	require.NotNil(t, remaining)

	s0, err := stage.ByOrdinal(0)
	require.NoError(t, err)
	assert.Equal(t, "d1_prog_completed", completed.ID)
	assert.Equal(t, s0.Label, completed.Label)
	assert.Equal(t, s0.Color, completed.Color)
	require.NotNil(t, completed.Ordinal)
	assert.Equal(t, 0, *completed.Ordinal)
	assert.True(t, completed.ShowNumber)
	assert.Equal(t, "2025-03-10", completed.StartDate)
	assert.Equal(t, "2025-04-10", completed.EndDate)
	assert.Equal(t, 31, completed.DurationDays)

	assert.Equal(t, "d1_prog_remaining", remaining.ID)
	assert.Equal(t, "Remaining Duration", remaining.Label)
	assert.Equal(t, stage.ProgressColor, remaining.Color)
	assert.Nil(t, remaining.Ordinal)
	assert.False(t, remaining.ShowNumber)
	assert.Equal(t, "2025-04-10", remaining.StartDate)
	assert.Equal(t, "2025-09-10", remaining.EndDate)
	assert.Equal(t, 153, remaining.DurationDays)

	// The two segments tile the whole progress bar in both percent systems.
	assert.InDelta(t, row.Position.WidthPercent, completed.WidthPercent+remaining.WidthPercent, 1e-9)
	assert.InDelta(t, 100, completed.RelativeWidthPercent+remaining.RelativeWidthPercent, 1e-9)
	assert.InDelta(t, completed.StartPercent+completed.WidthPercent, remaining.StartPercent, 1e-9)
}

func TestProgressSplitUsesHighestOrdinalStage(t *testing.T) {
	start := datemath.Date(2025, time.January, 1)
	end := datemath.Date(2025, time.December, 1)
	in := []timeline.Input{{
		Demand: demandWith("d1", start, 11),
		Periods: []domain.StagePeriod{
			progressPeriod("d1", start, end),
			{ID: "p0", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
				StartDate: start, EndDate: datemath.Date(2025, time.February, 1)},
			{ID: "p1", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_initiated",
				StartDate: datemath.Date(2025, time.February, 1), EndDate: datemath.Date(2025, time.April, 1)},
		},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	for _, b := range m.Demands[0].Bars {
		if b.Segment == timeline.SegmentCompleted {
			assert.Equal(t, "demand_initiated", b.Stage)
			assert.Equal(t, "2025-04-01", b.EndDate)
			return
		}
	}
	t.Fatalf("no completed segment found")
}

func TestProgressSplitAtFullSpanDropsRemaining(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	end := datemath.Date(2025, time.September, 10)
	in := []timeline.Input{{
		Demand: demandWith("d1", start, 6),
		Periods: []domain.StagePeriod{
			progressPeriod("d1", start, end),
			{ID: "p0", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
				StartDate: start, EndDate: end},
		},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	var segments []timeline.Segment
	for _, b := range m.Demands[0].Bars {
		if b.Kind == domain.PeriodProgress {
			segments = append(segments, b.Segment)
		}
	}
	assert.Equal(t, []timeline.Segment{timeline.SegmentCompleted}, segments)
}

func TestDetailBoxesIgnoreProgressSegments(t *testing.T) {
	start := datemath.Date(2025, time.March, 10)
	end := datemath.Date(2025, time.September, 10)
	in := []timeline.Input{{
		Demand: demandWith("d1", start, 6),
		Periods: []domain.StagePeriod{
			progressPeriod("d1", start, end),
			{ID: "p0", DemandID: "d1", Kind: domain.PeriodReal, Stage: "demand_to_be_initiated",
				StartDate: start, EndDate: datemath.Date(2025, time.April, 10)},
		},
	}}

	m := timeline.Compute(in, testOptions())
	require.Len(t, m.Demands, 1)
	boxes := m.Demands[0].DetailBoxes
	require.Len(t, boxes, stage.Count)
	assert.Equal(t, "p0", boxes[0].SourceID)
	for _, box := range boxes {
		assert.NotContains(t, box.SourceID, "_prog")
	}
}
