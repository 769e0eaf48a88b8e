package tracker

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/firstissue/firstissue/internal/apiclient"
	"github.com/firstissue/firstissue/internal/logging"
	"github.com/firstissue/firstissue/internal/retry"
)

var log = logging.Module("tracker")

// ListOpenIssues returns one page of open issues, most recently created
// first. Page numbers start at 1. A page shorter than PageSize() indicates
// there are no further pages. The result may include pull requests, which
// callers filter out via Issue.IsPullRequest.
func (c *Client) ListOpenIssues(ctx context.Context, page int) ([]Issue, error) {
	path := fmt.Sprintf("repos/%v/%v/issues?state=open&sort=created&direction=desc&per_page=%v&page=%v", c.owner, c.repo, c.pageSize, page)

	v, err := retry.WithExponentialBackoff(ctx, fmt.Sprintf("listing open issues page %v", page), func() (interface{}, error) {
		var issues []Issue

		if err := c.api.Get(ctx, path, &issues); err != nil {
			return nil, err
		}

		return issues, nil
	}, apiclient.IsRetriable)
	if err != nil {
		return nil, errors.Wrapf(err, "error listing open issues for %v/%v", c.owner, c.repo)
	}

	issues := v.([]Issue)

	log(ctx).Debugf("fetched page %v with %v items", page, len(issues))

	return issues, nil
}

// timelineEvent is the subset of a timeline entry needed to detect linked
// pull requests.
type timelineEvent struct {
	Event  string `json:"event"`
	Source *struct {
		Issue *struct {
			PullRequest map[string]interface{} `json:"pull_request"`
		} `json:"issue"`
	} `json:"source,omitempty"`
}

// HasLinkedPullRequest reports whether the given issue was cross-referenced
// by a pull request, which usually means a fix is already in flight.
func (c *Client) HasLinkedPullRequest(ctx context.Context, number int) (bool, error) {
	path := fmt.Sprintf("repos/%v/%v/issues/%v/timeline?per_page=100", c.owner, c.repo, number)

	v, err := retry.WithExponentialBackoff(ctx, fmt.Sprintf("fetching timeline for issue #%v", number), func() (interface{}, error) {
		var events []timelineEvent

		if err := c.api.Get(ctx, path, &events); err != nil {
			return nil, err
		}

		return events, nil
	}, apiclient.IsRetriable)
	if err != nil {
		return false, errors.Wrapf(err, "error fetching timeline for issue #%v", number)
	}

	for _, ev := range v.([]timelineEvent) {
		if ev.Event != "cross-referenced" {
			continue
		}

		if ev.Source != nil && ev.Source.Issue != nil && ev.Source.Issue.PullRequest != nil {
			return true, nil
		}
	}

	return false, nil
}

// SetLabels replaces the complete set of labels on the given issue.
func (c *Client) SetLabels(ctx context.Context, number int, labels []string) error {
	path := fmt.Sprintf("repos/%v/%v/issues/%v/labels", c.owner, c.repo, number)

	req := struct {
		Labels []string `json:"labels"`
	}{Labels: labels}

	_, err := retry.WithExponentialBackoff(ctx, fmt.Sprintf("setting labels on issue #%v", number), func() (interface{}, error) {
		return nil, c.api.Put(ctx, path, req, nil)
	}, apiclient.IsRetriable)
	if err != nil {
		return errors.Wrapf(err, "error setting labels on issue #%v", number)
	}

	log(ctx).Debugf("set labels on issue #%v to %v", number, labels)

	return nil
}
