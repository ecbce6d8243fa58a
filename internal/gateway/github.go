// Package gateway provides access to the upstream GitHub API, abstracting
// away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/enzo-prism/ship-api/internal/domain"
)

// Commits are listed against this fixed branch reference.
const defaultBranch = "main"

// UpstreamError is the single typed error for any non-2xx upstream
// response other than the explicit empty-repository signal.
type UpstreamError struct {
	Status           int
	Message          string
	DocumentationURL string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github api error (%d): %s", e.Status, e.Message)
}

// IsRateLimit reports whether this is a rate-limit 403. A 403 whose message
// does not mention the rate limit (e.g. permission denied on a private
// repo) is deliberately not treated as one.
func (e *UpstreamError) IsRateLimit() bool {
	return e.Status == http.StatusForbidden &&
		strings.Contains(strings.ToLower(e.Message), "rate limit")
}

// IsAuth reports whether the upstream rejected the configured credential.
func (e *UpstreamError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized
}

// ListOptions bounds one repository's commit pagination.
type ListOptions struct {
	Since    time.Time
	Until    time.Time
	PerPage  int
	MaxPages int
	// CacheTTL is a freshness hint consumed by the caching transport; the
	// fetcher itself does not manage the cache.
	CacheTTL time.Duration
}

// CommitLister defines the behavior of a gateway that pages one
// repository's commit history.
type CommitLister interface {
	ListCommits(ctx context.Context, repo string, opts ListOptions) (domain.FetchOutcome, error)
}

// RepoCheck is the result of verifying one allow-listed repository upstream.
type RepoCheck struct {
	Repo          string     `json:"repo"`
	DefaultBranch string     `json:"defaultBranch,omitempty"`
	PushedAt      *time.Time `json:"pushedAt,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// GitHubGateway is the concrete implementation of CommitLister backed by
// the GitHub REST API, plus a GraphQL client for allow-list checks.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *slog.Logger
}

// NewGitHubGateway builds the transport stack: TTL response cache, then the
// secondary-rate-limit waiter, then bearer auth when a token is configured.
func NewGitHubGateway(token string, logger *slog.Logger) (*GitHubGateway, error) {
	caching := newCachingTransport(http.DefaultTransport)
	waiter, err := github_ratelimit.NewRateLimitWaiter(caching, github_ratelimit.WithSingleSleepLimit(30*time.Second, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	var transport http.RoundTripper = waiter
	if token != "" {
		transport = &oauth2.Transport{
			Base:   waiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		}
	}
	httpClient := &http.Client{Transport: transport}
	return &GitHubGateway{
		restClient:    github.NewClient(httpClient),
		graphqlClient: githubv4.NewClient(httpClient),
		logger:        logger,
	}, nil
}

func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository %q (expected owner/name)", repo)
	}
	return owner, name, nil
}

// ListCommits pages the commit-listing endpoint for a single repository,
// starting at page 1, constrained to [Since, Until]. Stop conditions after
// each page, in order: empty-repository conflict, upstream error, empty
// page, short page, page budget exhausted (which sets Truncated).
func (g *GitHubGateway) ListCommits(ctx context.Context, repo string, opts ListOptions) (domain.FetchOutcome, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return domain.FetchOutcome{}, err
	}
	if opts.PerPage <= 0 {
		opts.PerPage = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 3
	}
	ctx = withCacheTTL(ctx, opts.CacheTTL)

	var out domain.FetchOutcome
	for page := 1; page <= opts.MaxPages; page++ {
		list, resp, err := g.restClient.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
			SHA:   defaultBranch,
			Since: opts.Since,
			Until: opts.Until,
			ListOptions: github.ListOptions{
				Page:    page,
				PerPage: opts.PerPage,
			},
		})
		if err != nil {
			// A 409 means the repository has no commits yet; keep whatever
			// earlier pages produced.
			if resp != nil && resp.StatusCode == http.StatusConflict {
				break
			}
			return domain.FetchOutcome{}, upstreamError(err)
		}
		if len(list) == 0 {
			break
		}
		for _, rc := range list {
			if record, ok := normalizeCommit(repo, rc); ok {
				out.Commits = append(out.Commits, record)
			}
		}
		if len(list) < opts.PerPage {
			break
		}
		if page == opts.MaxPages {
			out.Truncated = true
			break
		}
		g.logger.Debug("fetching next commit page", "repo", repo, "page", page+1)
	}
	return out, nil
}

// CheckRepo verifies one repository via the GraphQL API, reporting its
// default branch and last push time.
func (g *GitHubGateway) CheckRepo(ctx context.Context, repo string) (RepoCheck, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return RepoCheck{Repo: repo}, err
	}

	var q struct {
		Repository struct {
			DefaultBranchRef struct {
				Name githubv4.String
			}
			PushedAt githubv4.DateTime
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	variables := map[string]interface{}{
		"owner": githubv4.String(owner),
		"name":  githubv4.String(name),
	}
	if err := g.graphqlClient.Query(ctx, &q, variables); err != nil {
		return RepoCheck{Repo: repo}, fmt.Errorf("failed to query repository %s: %w", repo, err)
	}
	pushedAt := q.Repository.PushedAt.Time
	return RepoCheck{
		Repo:          repo,
		DefaultBranch: string(q.Repository.DefaultBranchRef.Name),
		PushedAt:      &pushedAt,
	}, nil
}

// normalizeCommit maps an upstream commit entry to a CommitRecord. The
// committer date wins over the author date; entries lacking both are
// dropped since they cannot be placed on a day bucket.
func normalizeCommit(repo string, rc *github.RepositoryCommit) (domain.CommitRecord, bool) {
	commit := rc.GetCommit()
	var committedAt time.Time
	if ts := commit.GetCommitter().GetDate(); !ts.Time.IsZero() {
		committedAt = ts.Time
	} else if ts := commit.GetAuthor().GetDate(); !ts.Time.IsZero() {
		committedAt = ts.Time
	} else {
		return domain.CommitRecord{}, false
	}

	subject, body := splitMessage(commit.GetMessage())
	return domain.CommitRecord{
		SHA:            rc.GetSHA(),
		Repo:           repo,
		HTMLURL:        rc.GetHTMLURL(),
		CommittedAt:    committedAt.UTC(),
		MessageSubject: subject,
		MessageBody:    body,
	}, true
}

// splitMessage splits a commit message on the first line break: everything
// before it is the subject, everything after, trimmed, is the body.
func splitMessage(message string) (subject, body string) {
	message = strings.ReplaceAll(message, "\r\n", "\n")
	subject, body, _ = strings.Cut(message, "\n")
	return subject, strings.TrimSpace(body)
}

// upstreamError maps go-github error types onto UpstreamError, passing
// anything else (e.g. network failures) through unchanged.
func upstreamError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &UpstreamError{
			Status:  statusOf(rateErr.Response, http.StatusForbidden),
			Message: messageOr(rateErr.Message, "API rate limit exceeded"),
		}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &UpstreamError{
			Status:  statusOf(abuseErr.Response, http.StatusForbidden),
			Message: messageOr(abuseErr.Message, "secondary rate limit exceeded"),
		}
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		return &UpstreamError{
			Status:           statusOf(respErr.Response, http.StatusBadGateway),
			Message:          messageOr(respErr.Message, respErr.Error()),
			DocumentationURL: respErr.DocumentationURL,
		}
	}
	return err
}

func statusOf(resp *http.Response, fallback int) int {
	if resp != nil {
		return resp.StatusCode
	}
	return fallback
}

func messageOr(message, fallback string) string {
	if message != "" {
		return message
	}
	return fallback
}
