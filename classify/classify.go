// Package classify implements a client for the remote document
// classification service.
package classify

import (
	"context"

	"github.com/pkg/errors"

	"github.com/firstissue/firstissue/internal/apiclient"
	"github.com/firstissue/firstissue/internal/logging"
	"github.com/firstissue/firstissue/internal/retry"
)

var log = logging.Module("classify")

// Document is a single unit of text submitted for classification.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Result is the classification outcome for one document. Confidence is in
// the [0,1] range. The service may return zero, one or many results per
// request; documents without a result are treated by callers as non-matches.
type Result struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Options encapsulates the configuration of the classification client.
type Options struct {
	BaseURL string
	Token   string
	Model   string // optional model override, service default when empty

	LogRequests bool
}

// Client is a client for the classification service.
type Client struct {
	api   *apiclient.Client
	model string
}

// NewClient creates a classification service client.
func NewClient(options Options) (*Client, error) {
	api, err := apiclient.NewClient(apiclient.Options{
		BaseURL:     options.BaseURL,
		Token:       options.Token,
		UserAgent:   "firstissue",
		LogRequests: options.LogRequests,
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create API client")
	}

	return &Client{api: api, model: options.Model}, nil
}

type classifyRequest struct {
	Model     string     `json:"model,omitempty"`
	Rules     string     `json:"rules"`
	Documents []Document `json:"documents"`
}

type classifyResponse struct {
	Results []Result `json:"results"`
}

// Classify submits the documents with the given ruleset and returns the
// labels the service assigned.
func (c *Client) Classify(ctx context.Context, docs []Document, rules string) ([]Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	req := classifyRequest{
		Model:     c.model,
		Rules:     rules,
		Documents: docs,
	}

	v, err := retry.WithExponentialBackoff(ctx, "classifying documents", func() (interface{}, error) {
		var resp classifyResponse

		if err := c.api.Post(ctx, "v1/classify", req, &resp); err != nil {
			return nil, err
		}

		return resp.Results, nil
	}, apiclient.IsRetriable)
	if err != nil {
		return nil, errors.Wrapf(err, "error classifying %v documents", len(docs))
	}

	results := v.([]Result)

	log(ctx).Debugf("classified %v documents, got %v results", len(docs), len(results))

	return results, nil
}
