package tracker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/firstissue/firstissue/internal/testlogging"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		BaseURL:  srv.URL,
		Token:    "test-token",
		Owner:    "acme",
		Repo:     "widget",
		PageSize: 3,
	})
	require.NoError(t, err)

	return c
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{Owner: "acme"})
	require.Error(t, err)

	_, err = NewClient(Options{Repo: "widget"})
	require.Error(t, err)
}

func TestListOpenIssues(t *testing.T) {
	ctx := testlogging.Context(t)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widget/issues", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		q := r.URL.Query()
		require.Equal(t, "open", q.Get("state"))
		require.Equal(t, "created", q.Get("sort"))
		require.Equal(t, "3", q.Get("per_page"))
		require.Equal(t, "1", q.Get("page"))

		//nolint:errcheck
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"number": 7, "title": "crash on empty input", "body": "details", "labels": []map[string]string{{"name": "bug"}}},
			{"number": 8, "title": "add docs", "pull_request": map[string]string{"url": "https://x"}},
		})
	}))

	issues, err := c.ListOpenIssues(ctx, 1)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	require.Equal(t, 7, issues[0].Number)
	require.False(t, issues[0].IsPullRequest())
	require.True(t, issues[0].HasLabel("Bug"))
	require.Equal(t, []string{"bug"}, issues[0].LabelNames())

	require.True(t, issues[1].IsPullRequest())
}

func TestListOpenIssues_ServerError(t *testing.T) {
	ctx := testlogging.Context(t)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))

	_, err := c.ListOpenIssues(ctx, 1)
	require.Error(t, err)
}

func TestHasLinkedPullRequest(t *testing.T) {
	ctx := testlogging.Context(t)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/acme/widget/issues/7/timeline":
			//nolint:errcheck
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"event": "labeled"},
				{"event": "cross-referenced", "source": map[string]interface{}{
					"issue": map[string]interface{}{"number": 99, "pull_request": map[string]string{"url": "https://x"}},
				}},
			})

		case "/repos/acme/widget/issues/8/timeline":
			//nolint:errcheck
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"event": "cross-referenced", "source": map[string]interface{}{
					"issue": map[string]interface{}{"number": 100},
				}},
			})

		default:
			http.NotFound(w, r)
		}
	}))

	linked, err := c.HasLinkedPullRequest(ctx, 7)
	require.NoError(t, err)
	require.True(t, linked)

	// cross-referenced by a plain issue, not a PR
	linked, err = c.HasLinkedPullRequest(ctx, 8)
	require.NoError(t, err)
	require.False(t, linked)
}

func TestSetLabels(t *testing.T) {
	ctx := testlogging.Context(t)

	var calls int32

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/repos/acme/widget/issues/7/labels", r.URL.Path)

		var req struct {
			Labels []string `json:"labels"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"bug", "good first issue"}, req.Labels)

		w.Write([]byte(`[]`)) //nolint:errcheck
	}))

	require.NoError(t, c.SetLabels(ctx, 7, []string{"bug", "good first issue"}))
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
