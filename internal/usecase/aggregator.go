// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/enzo-prism/ship-api/internal/allowlist"
	"github.com/enzo-prism/ship-api/internal/domain"
	"github.com/enzo-prism/ship-api/internal/gateway"
)

// FeedPageSize is the fixed page size of the commit feed.
const FeedPageSize = 50

const upstreamPerPage = 100

// ValidationError marks a client-caused input failure; the handler maps it
// to a 400 response.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// QueryParams are the raw request parameters, prior to validation.
type QueryParams struct {
	Repo  string
	Range string
	Since string
	Until string
	Tz    string
	Page  string
}

// Query is a validated aggregation request.
type Query struct {
	Repo            string
	AllProjects     bool
	Range           domain.DateRange
	TzOffsetMinutes int
	Page            int
}

// Aggregator is the use case for aggregating commit activity. It fans the
// commit lister out across the selected repositories, merges the results,
// and derives the paginated feed plus the daily rollup.
type Aggregator struct {
	lister        gateway.CommitLister
	directory     allowlist.Directory
	authenticated bool
	logger        *slog.Logger
	now           func() time.Time
}

// NewAggregator creates a new Aggregator instance. authenticated reflects
// whether an upstream credential is configured; it widens the concurrency
// and pagination budgets and shortens the cache freshness window.
func NewAggregator(lister gateway.CommitLister, directory allowlist.Directory, authenticated bool, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		lister:        lister,
		directory:     directory,
		authenticated: authenticated,
		logger:        logger,
		now:           time.Now,
	}
}

// Authenticated reports whether the aggregator runs with a credential.
func (a *Aggregator) Authenticated() bool { return a.authenticated }

// ParseQuery validates raw request parameters into a Query. All failures
// are ValidationErrors.
func (a *Aggregator) ParseQuery(p QueryParams) (Query, error) {
	q := Query{
		Repo:            strings.TrimSpace(p.Repo),
		TzOffsetMinutes: clampTz(strings.TrimSpace(p.Tz)),
		Page:            parsePage(strings.TrimSpace(p.Page)),
	}
	if q.Repo == "" {
		q.Repo = "all"
	}

	rangeParam := strings.TrimSpace(p.Range)
	sinceParam := strings.TrimSpace(p.Since)
	untilParam := strings.TrimSpace(p.Until)

	switch {
	case rangeParam != "" && (sinceParam != "" || untilParam != ""):
		return Query{}, invalidf("Use either `range` or (`since` and `until`), not both.")
	case rangeParam != "":
		days, err := strconv.Atoi(rangeParam)
		if err != nil || !domain.IsPresetDays(days) {
			return Query{}, invalidf("Invalid `range`. Must be 7, 30, 60, or 365.")
		}
		q.Range = domain.RangeFromPreset(days, a.now())
	case sinceParam != "" || untilParam != "":
		if sinceParam == "" || untilParam == "" {
			return Query{}, invalidf("When using custom dates, provide both `since` and `until`.")
		}
		rng, err := domain.RangeFromYmd(sinceParam, untilParam, domain.MaxRangeDays)
		if err != nil {
			return Query{}, &ValidationError{Msg: err.Error()}
		}
		q.Range = rng
	default:
		q.Range = domain.RangeFromPreset(domain.DefaultRangeDays, a.now())
	}

	if q.Repo == "all" {
		q.AllProjects = true
	} else if !a.directory.Permitted(q.Repo) {
		return Query{}, invalidf("Invalid `repo`. Must be `all` or an allowlisted owner/repo.")
	}
	return q, nil
}

// Aggregate runs the full pipeline: fan out, merge, sort, paginate, roll up.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (*domain.AggregatedResponse, error) {
	repos := []string{q.Repo}
	if q.AllProjects {
		repos = a.directory.Repos()
	}

	opts := gateway.ListOptions{
		Since:    q.Range.Since,
		Until:    q.Range.Until,
		PerPage:  upstreamPerPage,
		MaxPages: a.maxPages(q),
		CacheTTL: a.CacheTTL(),
	}
	concurrency := a.concurrency(q)

	// Failed repos in "all" mode contribute an empty outcome and a recorded
	// failure instead of failing the whole request. Auth and rate-limit
	// failures stay fatal: they indicate a systemic problem no per-repo
	// tolerance fixes.
	var mu sync.Mutex
	var failures []domain.RepoFailure
	outcomes, err := MapConcurrent(ctx, repos, concurrency, func(ctx context.Context, repo string) (domain.FetchOutcome, error) {
		out, err := a.lister.ListCommits(ctx, repo, opts)
		if err == nil {
			return out, nil
		}
		if !q.AllProjects {
			return domain.FetchOutcome{}, err
		}
		var upstream *gateway.UpstreamError
		if errors.As(err, &upstream) {
			if upstream.IsAuth() || upstream.IsRateLimit() {
				return domain.FetchOutcome{}, err
			}
			a.logger.Warn("repo fetch failed", "repo", repo, "status", upstream.Status, "message", upstream.Message)
			mu.Lock()
			failures = append(failures, domain.RepoFailure{Repo: repo, Status: upstream.Status, Message: upstream.Message})
			mu.Unlock()
			return domain.FetchOutcome{}, nil
		}
		a.logger.Warn("repo fetch failed", "repo", repo, "error", err)
		mu.Lock()
		failures = append(failures, domain.RepoFailure{Repo: repo, Message: err.Error()})
		mu.Unlock()
		return domain.FetchOutcome{}, nil
	})
	if err != nil {
		return nil, err
	}

	commits := make([]domain.CommitRecord, 0)
	truncated := false
	for _, outcome := range outcomes {
		commits = append(commits, outcome.Commits...)
		truncated = truncated || outcome.Truncated
	}
	sort.Slice(commits, func(i, j int) bool {
		return commits[i].CommittedAt.After(commits[j].CommittedAt)
	})

	total := len(commits)
	totalPages := (total + FeedPageSize - 1) / FeedPageSize
	if totalPages < 1 {
		totalPages = 1
	}
	page := max(q.Page, 1)
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * FeedPageSize
	end := min(start+FeedPageSize, total)

	summaries, scale := rollup(commits, q.TzOffsetMinutes, q.AllProjects)

	return &domain.AggregatedResponse{
		Commits:        commits[start:end],
		TotalCommits:   total,
		DailySummaries: summaries,
		HeatmapScale:   scale,
		Page:           page,
		PageSize:       FeedPageSize,
		TotalPages:     totalPages,
		Failures:       failures,
		Truncated:      truncated,
		Authenticated:  a.authenticated,
	}, nil
}

// CacheTTL is the upstream cache freshness window: short when
// authenticated, long when running against the stricter anonymous limits.
func (a *Aggregator) CacheTTL() time.Duration {
	if a.authenticated {
		return 60 * time.Second
	}
	return 900 * time.Second
}

func (a *Aggregator) concurrency(q Query) int {
	if !q.AllProjects {
		return 1
	}
	if a.authenticated {
		return 4
	}
	return 2
}

// maxPages bounds upstream round-trips per repository. Authenticated calls
// get deeper pagination for wider ranges; anonymous ones stay shallow so a
// full fan-out fits the unauthenticated rate limit.
func (a *Aggregator) maxPages(q Query) int {
	if a.authenticated {
		switch days := q.Range.DaysInclusive; {
		case days >= domain.MaxRangeDays:
			return 8
		case days >= 180:
			return 6
		case days >= 90:
			return 4
		default:
			return 3
		}
	}
	if q.AllProjects {
		return 1
	}
	return 2
}

func clampTz(raw string) int {
	if raw == "" {
		return 0
	}
	tz, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return max(-840, min(840, tz))
}

func parsePage(raw string) int {
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}
