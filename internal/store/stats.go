package store

import (
	"context"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/recalld/internal/episode"
)

// TagCount is a domain tag and the number of episodes carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats summarizes the stored episode population.
type Stats struct {
	Total           int        `json:"total"`
	SuccessCount    int        `json:"success_count"`
	PartialCount    int        `json:"partial_count"`
	FailureCount    int        `json:"failure_count"`
	TotalRetrievals int        `json:"total_retrievals"`
	TotalHelpful    int        `json:"total_helpful"`
	AvgUtility      float64    `json:"avg_utility"`
	Projects        []string   `json:"projects"`
	TopTags         []TagCount `json:"top_tags"`

	// UnreadableRecords is the number of persisted records that failed
	// to parse during listing.
	UnreadableRecords int `json:"unreadable_records"`
}

// CollectStats computes population statistics, optionally restricted to
// projects whose name contains the filter (case-insensitive).
func CollectStats(ctx context.Context, s Store, projectFilter string) (*Stats, error) {
	listing, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	episodes := listing.Episodes
	if projectFilter != "" {
		filtered := episodes[:0]
		needle := strings.ToLower(projectFilter)
		for _, ep := range episodes {
			if strings.Contains(strings.ToLower(ep.Project), needle) {
				filtered = append(filtered, ep)
			}
		}
		episodes = filtered
	}

	stats := &Stats{
		Total:             len(episodes),
		UnreadableRecords: len(listing.Errors),
	}

	projects := map[string]struct{}{}
	tags := map[string]int{}
	var utilitySum float64

	for _, ep := range episodes {
		switch ep.Outcome.Status {
		case episode.OutcomeSuccess:
			stats.SuccessCount++
		case episode.OutcomePartial:
			stats.PartialCount++
		case episode.OutcomeFailure:
			stats.FailureCount++
		}
		stats.TotalRetrievals += ep.Utility.RetrievalCount
		stats.TotalHelpful += ep.Utility.HelpfulCount
		utilitySum += ep.Utility.CalculateScore()

		projects[ep.Project] = struct{}{}
		for _, tag := range ep.Intent.Domain {
			tags[tag]++
		}
	}

	if stats.Total > 0 {
		stats.AvgUtility = utilitySum / float64(stats.Total)
	}

	for project := range projects {
		stats.Projects = append(stats.Projects, project)
	}
	sort.Strings(stats.Projects)

	for tag, count := range tags {
		stats.TopTags = append(stats.TopTags, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(stats.TopTags, func(i, j int) bool {
		if stats.TopTags[i].Count != stats.TopTags[j].Count {
			return stats.TopTags[i].Count > stats.TopTags[j].Count
		}
		return stats.TopTags[i].Tag < stats.TopTags[j].Tag
	})
	if len(stats.TopTags) > 10 {
		stats.TopTags = stats.TopTags[:10]
	}

	return stats, nil
}
