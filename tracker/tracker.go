// Package tracker implements a client for the issue tracker's REST API.
package tracker

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/firstissue/firstissue/internal/apiclient"
)

const (
	defaultBaseURL  = "https://api.github.com"
	defaultPageSize = 100
)

// Label is a label attached to an issue.
type Label struct {
	Name string `json:"name"`
}

// Issue describes a single issue returned by the tracker.
//
// The tracker's issue listing also returns pull requests; those carry a
// non-nil PullRequest field and are not issues for our purposes.
type Issue struct {
	Number      int                    `json:"number"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	CreatedAt   time.Time              `json:"created_at"`
	Labels      []Label                `json:"labels"`
	PullRequest map[string]interface{} `json:"pull_request,omitempty"`
}

// IsPullRequest reports whether the item is a pull request rather than an issue.
func (i Issue) IsPullRequest() bool {
	return i.PullRequest != nil
}

// HasLabel reports whether the issue already carries the given label.
// Label names are matched case-insensitively, the way the tracker treats them.
func (i Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if strings.EqualFold(l.Name, name) {
			return true
		}
	}

	return false
}

// LabelNames returns the names of all labels on the issue.
func (i Issue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}

	return names
}

// Options encapsulates the configuration of the tracker client.
type Options struct {
	BaseURL  string // defaults to the public GitHub API
	Token    string
	Owner    string
	Repo     string
	PageSize int // issues per page, defaults to 100

	LogRequests bool
}

// Client is a client for a single repository on the issue tracker.
type Client struct {
	api      *apiclient.Client
	owner    string
	repo     string
	pageSize int
}

// NewClient creates a tracker client for the repository identified in options.
func NewClient(options Options) (*Client, error) {
	if options.Owner == "" || options.Repo == "" {
		return nil, errors.New("repository owner and name are required")
	}

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	pageSize := options.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}

	api, err := apiclient.NewClient(apiclient.Options{
		BaseURL:     baseURL,
		Token:       options.Token,
		UserAgent:   "firstissue",
		LogRequests: options.LogRequests,
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create API client")
	}

	api.Headers.Set("Accept", "application/vnd.github+json")

	return &Client{
		api:      api,
		owner:    options.Owner,
		repo:     options.Repo,
		pageSize: pageSize,
	}, nil
}

// PageSize returns the number of issues per page; a shorter page signals
// that the listing is exhausted.
func (c *Client) PageSize() int {
	return c.pageSize
}
