package usecase

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/enzo-prism/ship-api/internal/domain"
)

const topReposPerDay = 2

// dayKey buckets an instant onto the viewer's local calendar day. The
// offset follows the JavaScript getTimezoneOffset convention: minutes west
// of UTC, so 480 is UTC-8.
func dayKey(t time.Time, tzOffsetMinutes int) string {
	return t.Add(-time.Duration(tzOffsetMinutes) * time.Minute).UTC().Format("2006-01-02")
}

// rollup derives the daily summaries and the heatmap intensity scale over
// the full, unpaginated commit set. Per-day repo breakdowns are only
// recorded in "all projects" mode; with a single repo selected there is
// nothing to break down.
func rollup(commits []domain.CommitRecord, tzOffsetMinutes int, allProjects bool) ([]domain.DailySummary, *domain.HeatmapScale) {
	dayCounts := make(map[string]int)
	perDayRepos := make(map[string]map[string]int)
	for _, commit := range commits {
		key := dayKey(commit.CommittedAt, tzOffsetMinutes)
		dayCounts[key]++
		if !allProjects {
			continue
		}
		if perDayRepos[key] == nil {
			perDayRepos[key] = make(map[string]int)
		}
		perDayRepos[key][commit.Repo]++
	}

	summaries := make([]domain.DailySummary, 0, len(dayCounts))
	for key, count := range dayCounts {
		summaries = append(summaries, domain.DailySummary{
			DayKey:   key,
			Count:    count,
			TopRepos: topRepos(perDayRepos[key]),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].DayKey < summaries[j].DayKey
	})

	return summaries, heatmapScale(summaries)
}

// topRepos returns the day's top contributing repositories by commit
// count, descending. Ties break on repo name ascending so identical
// inputs always select and order the same repos.
func topRepos(counts map[string]int) []domain.DayRepoCount {
	out := make([]domain.DayRepoCount, 0, len(counts))
	for repo, count := range counts {
		out = append(out, domain.DayRepoCount{Repo: repo, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Repo < out[j].Repo
	})
	if len(out) > topReposPerDay {
		out = out[:topReposPerDay]
	}
	return out
}

// heatmapScale computes quartile intensity thresholds over the nonzero
// daily counts, plus the best day of the range. Nil when no day has
// commits.
func heatmapScale(summaries []domain.DailySummary) *domain.HeatmapScale {
	counts := make(stats.Float64Data, 0, len(summaries))
	scale := &domain.HeatmapScale{}
	for _, s := range summaries {
		if s.Count == 0 {
			continue
		}
		counts = append(counts, float64(s.Count))
		if s.Count > scale.MaxCount {
			scale.MaxCount = s.Count
			scale.BestDay = s.DayKey
		}
	}
	if len(counts) == 0 {
		return nil
	}

	if quartiles, err := stats.Quartile(counts); err == nil {
		scale.Q1 = quartiles.Q1
		scale.Q2 = quartiles.Q2
		scale.Q3 = quartiles.Q3
	}
	if mean, err := stats.Mean(counts); err == nil {
		scale.MeanPerDay = mean
	}
	return scale
}
