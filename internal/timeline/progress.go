package timeline

import (
	"demandline/internal/datemath"
	"demandline/internal/domain"
	"demandline/internal/stage"
)

// progressBars renders the synthetic progress period. With no recorded stage
// it is a single grey bar; with a current stage it splits at that stage's
// period end into a colored completed segment and a grey remaining segment,
// widths scaled in the anchor coordinate and applied identically to the
// global-percent and relative-percent geometry.
func progressBars(p domain.StagePeriod, g barGeom, periods []domain.StagePeriod, anchor Anchor) []Bar {
	current, currentPeriod := currentStage(periods)
	if current == nil {
		return []Bar{plainProgressBar(p, g, "Duration", stage.ProgressColor, nil, "")}
	}

	ordinal := current.Ordinal
	if currentPeriod == nil || g.anchorWidth <= 0 {
		// Stage recorded but its period row is missing, or the bar has no
		// anchor span to split: render undivided, tagged with the current
		// stage so the chart still shows where the demand stands.
		return []Bar{plainProgressBar(p, g, current.Label, current.Color, &ordinal, current.Key)}
	}

	splitDate := currentPeriod.EndDate
	splitPos := anchor.Pos(splitDate)

	var bars []Bar

	if completedWidth := splitPos - g.anchorStart; completedWidth > 0 {
		frac := completedWidth / g.anchorWidth
		bars = append(bars, Bar{
			ID:                   p.ID + "_completed",
			Kind:                 domain.PeriodProgress,
			Segment:              SegmentCompleted,
			Stage:                current.Key,
			Ordinal:              &ordinal,
			Label:                current.Label,
			Color:                current.Color,
			StartPercent:         g.startPercent,
			WidthPercent:         g.widthPercent * frac,
			RelativeStartPercent: g.relStart,
			RelativeWidthPercent: g.relWidth * frac,
			DurationDays:         datemath.DaysFrom(p.StartDate, splitDate),
			StartDate:            datemath.Format(p.StartDate),
			EndDate:              datemath.Format(splitDate),
			StartQuarter:         QuarterOf(p.StartDate),
			EndQuarter:           QuarterOf(splitDate),
			AnchorStart:          g.anchorStart,
			AnchorEnd:            splitPos,
			AnchorWidth:          completedWidth,
			ShowNumber:           true,
		})
	}

	if remainingWidth := g.anchorEnd - splitPos; remainingWidth > 0 {
		completedFrac := (splitPos - g.anchorStart) / g.anchorWidth
		frac := remainingWidth / g.anchorWidth
		bars = append(bars, Bar{
			ID:                   p.ID + "_remaining",
			Kind:                 domain.PeriodProgress,
			Segment:              SegmentRemaining,
			Label:                "Remaining Duration",
			Color:                stage.ProgressColor,
			StartPercent:         g.startPercent + g.widthPercent*completedFrac,
			WidthPercent:         g.widthPercent * frac,
			RelativeStartPercent: g.relStart + g.relWidth*completedFrac,
			RelativeWidthPercent: g.relWidth * frac,
			DurationDays:         datemath.DaysFrom(splitDate, p.EndDate),
			StartDate:            datemath.Format(splitDate),
			EndDate:              datemath.Format(p.EndDate),
			StartQuarter:         QuarterOf(splitDate),
			EndQuarter:           QuarterOf(p.EndDate),
			AnchorStart:          splitPos,
			AnchorEnd:            g.anchorEnd,
			AnchorWidth:          remainingWidth,
			ShowNumber:           false,
		})
	}
	return bars
}

func plainProgressBar(p domain.StagePeriod, g barGeom, label, color string, ordinal *int, stageKey string) Bar {
	return Bar{
		ID:                   p.ID,
		Kind:                 domain.PeriodProgress,
		Stage:                stageKey,
		Ordinal:              ordinal,
		Label:                label,
		Color:                color,
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
		ShowNumber:           ordinal != nil,
	}
}

// currentStage derives a demand's current stage as the real period with the
// highest ordinal, along with that period.
func currentStage(periods []domain.StagePeriod) (*stage.Stage, *domain.StagePeriod) {
	var best *stage.Stage
	var bestPeriod *domain.StagePeriod
	for i := range periods {
		p := &periods[i]
		if p.Kind != domain.PeriodReal {
			continue
		}
		s, err := stage.ByKey(p.Stage)
		if err != nil {
			continue
		}
		if best == nil || s.Ordinal > best.Ordinal {
			cp := s
			best = &cp
			bestPeriod = p
		}
	}
	return best, bestPeriod
}
