package agent

import (
	"sort"

	"github.com/vigilstack/vigil-rca/internal/models"
)

// MineHotspots aggregates completed investigations into recurring
// (service, root-cause category) hotspots, ranked by prevalence. Prevalence
// is the share of completed investigations landing on that pairing, so a
// service that fails the same way repeatedly surfaces at the top.
func MineHotspots(investigations []models.Investigation) []models.HotspotPattern {
	type key struct {
		service  string
		category string
	}
	type aggregate struct {
		count    int
		lastSeen models.Investigation
	}

	completed := 0
	stats := make(map[key]*aggregate)
	for _, inv := range investigations {
		if inv.Status != models.InvestigationComplete || inv.Category == "" {
			continue
		}
		completed++
		k := key{service: inv.Alert.Service, category: inv.Category}
		agg, ok := stats[k]
		if !ok {
			agg = &aggregate{}
			stats[k] = agg
		}
		agg.count++
		if inv.CompletedAt.After(agg.lastSeen.CompletedAt) {
			agg.lastSeen = inv
		}
	}
	if completed == 0 {
		return nil
	}

	patterns := make([]models.HotspotPattern, 0, len(stats))
	for k, agg := range stats {
		patterns = append(patterns, models.HotspotPattern{
			Service:    k.service,
			Category:   k.category,
			Count:      agg.count,
			Prevalence: float64(agg.count) / float64(completed),
			LastSeen:   agg.lastSeen.CompletedAt,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Prevalence != patterns[j].Prevalence {
			return patterns[i].Prevalence > patterns[j].Prevalence
		}
		if patterns[i].Service != patterns[j].Service {
			return patterns[i].Service < patterns[j].Service
		}
		return patterns[i].Category < patterns[j].Category
	})
	return patterns
}
