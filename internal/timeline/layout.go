// Package timeline computes the Gantt render model: global grid markers,
// per-demand bars, nested stage bars, the split progress bar, and the 26
// per-ordinal detail boxes. All geometry is derived from stored dates on
// every call; nothing here is persisted.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"demandline/internal/datemath"
	"demandline/internal/domain"
	"demandline/internal/stage"
)

// Input is one demand with all its stage periods, synthetic included.
type Input struct {
	Demand  domain.Demand
	Periods []domain.StagePeriod
}

// Options carries the configurable display geometry.
type Options struct {
	Anchor        Anchor
	FallbackStart time.Time
}

// minVisibleWidthPercent keeps single-day demands visible on wide timelines.
const minVisibleWidthPercent = 0.5

// Compute builds the full render model from every demand and its periods.
func Compute(inputs []Input, opts Options) *RenderModel {
	m := &RenderModel{
		Years:    []Marker{},
		Quarters: []Marker{},
		Months:   []Marker{},
		Demands:  []Row{},
		Legend:   stage.All(),
	}
	if len(inputs) == 0 {
		return m
	}

	globalStart, globalEnd := globalRange(inputs, opts.FallbackStart)
	m.GlobalStart = datemath.Format(globalStart)
	m.GlobalEnd = datemath.Format(globalEnd)

	totalDays := datemath.DaysBetween(globalStart, globalEnd)
	if totalDays <= 0 {
		m.Degenerate = true
		return m
	}

	m.Years, m.Quarters, m.Months = markers(globalStart, globalEnd, totalDays)

	for _, in := range inputs {
		row, ok := buildRow(in, globalStart, totalDays, opts.Anchor)
		if !ok {
			continue
		}
		m.Demands = append(m.Demands, row)
	}
	return m
}

// globalRange finds the widest [start, end] across every demand and period,
// then floors to Jan 1 and ceils to Dec 31 so the grid shows whole years.
func globalRange(inputs []Input, fallbackStart time.Time) (time.Time, time.Time) {
	var earliest, latest *time.Time

	consider := func(t time.Time, min bool) {
		if min {
			if earliest == nil || t.Before(*earliest) {
				earliest = &t
			}
			return
		}
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}

	for _, in := range inputs {
		if in.Demand.StartDate != nil {
			consider(*in.Demand.StartDate, true)
			if end := in.Demand.EndDate(); end != nil {
				consider(*end, false)
			}
		}
		for _, p := range in.Periods {
			consider(p.StartDate, true)
			consider(p.EndDate, false)
		}
	}

	if earliest == nil {
		earliest = &fallbackStart
	}
	if latest == nil {
		end := datemath.AddMonths(*earliest, 12)
		latest = &end
	}

	start := datemath.Date(earliest.Year(), time.January, 1)
	end := datemath.Date(latest.Year(), time.December, 31)
	return start, end
}

func markers(globalStart, globalEnd time.Time, totalDays int) (years, quarters, months []Marker) {
	pos := func(t time.Time) float64 {
		return float64(datemath.DaysFrom(globalStart, t)) / float64(totalDays) * 100
	}

	years = []Marker{}
	quarters = []Marker{}
	months = []Marker{}

	for year := globalStart.Year(); year <= globalEnd.Year(); year++ {
		yearStart := datemath.Date(year, time.January, 1)
		if yearStart.Before(globalStart) {
			yearStart = globalStart
		}
		years = append(years, Marker{
			Label:    yearStart.Format("2006"),
			Position: pos(yearStart),
			Year:     year,
		})

		for q := 1; q <= 4; q++ {
			qDate := datemath.Date(year, time.Month((q-1)*3+1), 1)
			if qDate.Before(globalStart) || qDate.After(globalEnd) {
				continue
			}
			quarters = append(quarters, Marker{
				Date:     datemath.Format(qDate),
				Label:    fmt.Sprintf("Q%d", q),
				Position: pos(qDate),
			})
		}
	}

	for cur := globalStart; !cur.After(globalEnd); cur = datemath.AddMonths(cur, 1) {
		months = append(months, Marker{
			Date:     datemath.Format(cur),
			Label:    cur.Format("Jan"),
			Position: pos(cur),
		})
	}
	return years, quarters, months
}

// barGeom is the shared geometry every bar derived from one period carries.
type barGeom struct {
	startPercent float64
	widthPercent float64
	relStart     float64
	relWidth     float64
	anchorStart  float64
	anchorEnd    float64
	anchorWidth  float64
}

func buildRow(in Input, globalStart time.Time, totalDays int, anchor Anchor) (Row, bool) {
	demandStart := in.Demand.StartDate
	demandEnd := in.Demand.EndDate()

	// A demand without its own dates borrows the extent of its periods.
	if (demandStart == nil || demandEnd == nil) && len(in.Periods) > 0 {
		var lo, hi time.Time
		for i, p := range in.Periods {
			if i == 0 || p.StartDate.Before(lo) {
				lo = p.StartDate
			}
			if i == 0 || p.EndDate.After(hi) {
				hi = p.EndDate
			}
		}
		demandStart, demandEnd = &lo, &hi
	}
	if demandStart == nil || demandEnd == nil {
		return Row{}, false
	}

	durationDays := datemath.DaysBetween(*demandStart, *demandEnd)
	startPercent := float64(datemath.DaysFrom(globalStart, *demandStart)) / float64(totalDays) * 100
	if startPercent < 0 {
		startPercent = 0
	}
	widthPercent := float64(durationDays) / float64(totalDays) * 100
	if widthPercent < minVisibleWidthPercent {
		widthPercent = minVisibleWidthPercent
	}

	geom := Geometry{
		StartPercent: startPercent,
		WidthPercent: widthPercent,
		StartDate:    datemath.Format(*demandStart),
		EndDate:      datemath.Format(*demandEnd),
		DurationDays: durationDays,
	}

	var bars []Bar
	for _, p := range in.Periods {
		g := periodGeom(p, *demandStart, durationDays, startPercent, widthPercent, anchor)
		if p.Kind == domain.PeriodProgress {
			bars = append(bars, progressBars(p, g, in.Periods, anchor)...)
			continue
		}
		if b, ok := realBar(p, g); ok {
			bars = append(bars, b)
		}
	}

	boxes := detailBoxes(bars)

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].StartDate < bars[j].StartDate })

	return Row{Demand: in.Demand, Position: geom, Bars: bars, DetailBoxes: boxes}, true
}

func periodGeom(p domain.StagePeriod, demandStart time.Time, demandDurationDays int, demandStartPercent, demandWidthPercent float64, anchor Anchor) barGeom {
	relStart := float64(datemath.DaysFrom(demandStart, p.StartDate)) / float64(demandDurationDays) * 100
	relWidth := float64(p.DurationDays()) / float64(demandDurationDays) * 100

	startPos := anchor.Pos(p.StartDate)
	endPos := anchor.Pos(p.EndDate)

	return barGeom{
		startPercent: demandStartPercent + demandWidthPercent*relStart/100,
		widthPercent: demandWidthPercent * relWidth / 100,
		relStart:     relStart,
		relWidth:     relWidth,
		anchorStart:  startPos,
		anchorEnd:    endPos,
		anchorWidth:  endPos - startPos,
	}
}

func realBar(p domain.StagePeriod, g barGeom) (Bar, bool) {
	s, err := stage.ByKey(p.Stage)
	if err != nil {
		// Unknown keys cannot reach storage through validated writes; an
		// orphan row must not take down the whole chart.
		return Bar{}, false
	}
	ordinal := s.Ordinal
	return Bar{
		ID:                   p.ID,
		Kind:                 domain.PeriodReal,
		Stage:                s.Key,
		Ordinal:              &ordinal,
		Label:                s.Label,
		Color:                s.Color,
		StartPercent:         g.startPercent,
		WidthPercent:         g.widthPercent,
		RelativeStartPercent: g.relStart,
		RelativeWidthPercent: g.relWidth,
		DurationDays:         p.DurationDays(),
		StartDate:            datemath.Format(p.StartDate),
		EndDate:              datemath.Format(p.EndDate),
		StartQuarter:         QuarterOf(p.StartDate),
		EndQuarter:           QuarterOf(p.EndDate),
		AnchorStart:          g.anchorStart,
		AnchorEnd:            g.anchorEnd,
		AnchorWidth:          g.anchorWidth,
		ShowNumber:           true,
	}, true
}

// detailBoxes emits exactly one box per ordinal 0..25: the first real bar
// matching the ordinal in period order, or a neutral placeholder.
func detailBoxes(bars []Bar) []DetailBox {
	boxes := make([]DetailBox, 0, stage.Count)
	for ordinal := 0; ordinal < stage.Count; ordinal++ {
		var found *Bar
		for i := range bars {
			if bars[i].Kind != domain.PeriodReal {
				continue
			}
			if bars[i].Ordinal != nil && *bars[i].Ordinal == ordinal {
				found = &bars[i]
				break
			}
		}
		if found != nil {
			boxes = append(boxes, DetailBox{
				Ordinal:      ordinal,
				DurationDays: found.DurationDays,
				Color:        found.Color,
				SourceID:     found.ID,
			})
			continue
		}
		boxes = append(boxes, DetailBox{
			Ordinal:      ordinal,
			DurationDays: 0,
			Color:        stage.PlaceholderColor,
		})
	}
	return boxes
}
