package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enzo-prism/ship-api/internal/allowlist"
	"github.com/enzo-prism/ship-api/internal/domain"
	"github.com/enzo-prism/ship-api/internal/gateway"
	"github.com/enzo-prism/ship-api/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubLister implements gateway.CommitLister with a function.
type stubLister func(ctx context.Context, repo string, opts gateway.ListOptions) (domain.FetchOutcome, error)

func (s stubLister) ListCommits(ctx context.Context, repo string, opts gateway.ListOptions) (domain.FetchOutcome, error) {
	return s(ctx, repo, opts)
}

func newTestRouter(t *testing.T, lister gateway.CommitLister, authenticated bool) *gin.Engine {
	t.Helper()
	directory := allowlist.NewStatic([]string{"org/a", "org/b"}, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	agg := usecase.NewAggregator(lister, directory, authenticated, logger)
	return NewRouter(agg, logger)
}

func doRequest(t *testing.T, router *gin.Engine, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCommits_Success(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lister := stubLister(func(ctx context.Context, repo string, opts gateway.ListOptions) (domain.FetchOutcome, error) {
		return domain.FetchOutcome{Commits: []domain.CommitRecord{{
			SHA:            "abc123",
			Repo:           repo,
			HTMLURL:        "https://github.com/" + repo + "/commit/abc123",
			CommittedAt:    now,
			MessageSubject: "ship it",
		}}}, nil
	})

	router := newTestRouter(t, lister, true)
	rec := doRequest(t, router, "/api/commits?range=7")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s-maxage=60, stale-while-revalidate=300", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "token", rec.Header().Get("X-Ship-Auth"))
	assert.Empty(t, rec.Header().Get("X-Ship-Partial"))
	assert.Empty(t, rec.Header().Get("X-Ship-Truncated"))

	var body struct {
		Commits []struct {
			SHA  string `json:"sha"`
			Repo string `json:"repo"`
		} `json:"commits"`
		TotalCommits   int               `json:"totalCommits"`
		DailySummaries []json.RawMessage `json:"dailySummaries"`
		Page           int               `json:"page"`
		PageSize       int               `json:"pageSize"`
		TotalPages     int               `json:"totalPages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.TotalCommits) // one commit per allow-listed repo
	assert.Len(t, body.Commits, 2)
	assert.Equal(t, 1, body.Page)
	assert.Equal(t, usecase.FeedPageSize, body.PageSize)
	assert.Equal(t, 1, body.TotalPages)
	assert.Len(t, body.DailySummaries, 1)
}

func TestHandleCommits_UnauthenticatedHeaders(t *testing.T) {
	lister := stubLister(func(ctx context.Context, repo string, opts gateway.ListOptions) (domain.FetchOutcome, error) {
		return domain.FetchOutcome{}, nil
	})

	router := newTestRouter(t, lister, false)
	rec := doRequest(t, router, "/api/commits?range=7")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s-maxage=900, stale-while-revalidate=900", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "none", rec.Header().Get("X-Ship-Auth"))
}

func TestHandleCommits_PartialDegradation(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lister := stubLister(func(ctx context.Context, repo string, opts gateway.ListOptions) (domain.FetchOutcome, error) {
		if repo == "org/b" {
			return domain.FetchOutcome{}, &gateway.UpstreamError{Status: http.StatusNotFound, Message: "Not Found"}
		}
		return domain.FetchOutcome{
			Commits:   []domain.CommitRecord{{SHA: "abc", Repo: repo, CommittedAt: now, MessageSubject: "m"}},
			Truncated: true,
		}, nil
	})

	router := newTestRouter(t, lister, true)
	rec := doRequest(t, router, "/api/commits?range=7")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Ship-Partial"))
	assert.Equal(t, "1", rec.Header().Get("X-Ship-Truncated"))
	assert.Equal(t, "1", rec.Header().Get("X-Ship-Repo-Failures"))
}

func TestHandleCommits_ValidationErrors(t *testing.T) {
	lister := stubLister(func(ctx context.Context, repo string, opts gateway.ListOptions) (domain.FetchOutcome, error) {
		t.Fatal("no upstream call expected")
		return domain.FetchOutcome{}, nil
	})
	router := newTestRouter(t, lister, true)

	testCases := []struct {
		name        string
		target      string
		errContains string
	}{
		{
			name:        "mixed range and custom dates",
			target:      "/api/commits?range=30&since=2024-01-01&until=2024-01-31",
			errContains: "not both",
		},
		{
			name:        "invalid preset",
			target:      "/api/commits?range=99",
			errContains: "Invalid `range`",
		},
		{
			name:        "missing until",
			target:      "/api/commits?since=2024-01-01",
			errContains: "both `since` and `until`",
		},
		{
			name:        "repo off the allow-list",
			target:      "/api/commits?repo=org/evil&range=7",
			errContains: "Invalid `repo`",
		},
		{
			name:        "reversed custom range",
			target:      "/api/commits?since=2024-02-01&until=2024-01-01",
			errContains: "on/after",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, tc.target)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			var body struct {
				Error string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Error, tc.errContains)
		})
	}
}

func TestHandleCommits_UpstreamErrors(t *testing.T) {
	testCases := []struct {
		name        string
		err         error
		errContains string
	}{
		{
			name:        "authentication failure",
			err:         &gateway.UpstreamError{Status: http.StatusUnauthorized, Message: "Bad credentials"},
			errContains: "authentication failed",
		},
		{
			name:        "rate limit",
			err:         &gateway.UpstreamError{Status: http.StatusForbidden, Message: "API rate limit exceeded"},
			errContains: "rate limit reached",
		},
		{
			name:        "other upstream failure on a single repo",
			err:         &gateway.UpstreamError{Status: http.StatusInternalServerError, Message: "boom"},
			errContains: "GitHub API error: boom",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lister := stubLister(func(ctx context.Context, repo string, opts gateway.ListOptions) (domain.FetchOutcome, error) {
				return domain.FetchOutcome{}, tc.err
			})
			router := newTestRouter(t, lister, true)

			// A single-repo request makes every upstream error terminal.
			rec := doRequest(t, router, "/api/commits?repo=org/a&range=7")

			require.Equal(t, http.StatusBadGateway, rec.Code)
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			var body struct {
				Error string `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Error, tc.errContains)
		})
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, nil, false)
	rec := doRequest(t, router, "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
