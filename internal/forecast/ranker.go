package forecast

import (
	"sort"

	"github.com/andresuchdata/reorder-ai/internal/domain"
)

// Rank keeps the suggestions that need a reorder, most urgent first. Ties on
// urgency are broken by the larger shortage risk; remaining ties keep input order.
func Rank(suggestions []domain.Suggestion) []domain.Suggestion {
	ranked := make([]domain.Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		if s.Recommendation.NeedsReorder {
			ranked = append(ranked, s)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Recommendation, ranked[j].Recommendation
		if a.Urgency.Rank() != b.Urgency.Rank() {
			return a.Urgency.Rank() < b.Urgency.Rank()
		}
		return a.ShortageRisk > b.ShortageRisk
	})

	return ranked
}

// SummarizeAlerts counts the ranked alerts among all evaluated suggestions.
// AI coverage is measured over every item, not only the ones needing a reorder.
func SummarizeAlerts(all []domain.Suggestion, topN int) domain.AlertSummary {
	alerts := Rank(all)

	summary := domain.AlertSummary{
		TotalAlerts: len(alerts),
		TotalItems:  len(all),
		TopAlerts:   []domain.Suggestion{},
	}

	for _, a := range alerts {
		switch a.Recommendation.Urgency {
		case domain.UrgencyCritical:
			summary.CriticalCount++
		case domain.UrgencyHigh:
			summary.HighCount++
		case domain.UrgencyMedium:
			summary.MediumCount++
		}
		if a.Recommendation.AIPowered {
			summary.AIPoweredCount++
		}
		summary.TotalReorderCost = summary.TotalReorderCost.Add(a.ReorderValue())
	}
	summary.HasCritical = summary.CriticalCount > 0
	summary.HasHigh = summary.HighCount > 0

	if len(all) > 0 {
		aiItems := 0
		for _, s := range all {
			if s.Recommendation.AIPowered {
				aiItems++
			}
		}
		summary.AICoverage = round2(float64(aiItems) / float64(len(all)) * 100)
	}

	if topN <= 0 {
		topN = 5
	}
	if topN > len(alerts) {
		topN = len(alerts)
	}
	summary.TopAlerts = append(summary.TopAlerts, alerts[:topN]...)

	return summary
}
