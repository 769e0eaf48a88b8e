// Package apiclient implements a client for JSON REST APIs.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/firstissue/firstissue/internal/logging"
	"github.com/firstissue/firstissue/internal/timetrack"
)

var log = logging.Module("apiclient")

const maxErrorBodyLength = 4096

// Client provides helper methods for communicating with a JSON REST API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string

	// Headers are added to every request.
	Headers http.Header
}

// Get is a helper that performs HTTP GET on a URL with the specified suffix and decodes the response
// onto respPayload which must be a pointer to a JSON-serializable structure or nil.
func (c *Client) Get(ctx context.Context, urlSuffix string, respPayload interface{}) error {
	return c.runRequest(ctx, http.MethodGet, c.actualURL(urlSuffix), nil, respPayload)
}

// Post is a helper that performs HTTP POST on a URL with the specified body from reqPayload and decodes
// the response onto respPayload which must be a pointer to a JSON-serializable structure or nil.
func (c *Client) Post(ctx context.Context, urlSuffix string, reqPayload, respPayload interface{}) error {
	return c.runRequest(ctx, http.MethodPost, c.actualURL(urlSuffix), reqPayload, respPayload)
}

// Put is a helper that performs HTTP PUT on a URL with the specified body from reqPayload and decodes
// the response onto respPayload which must be a pointer to a JSON-serializable structure or nil.
func (c *Client) Put(ctx context.Context, urlSuffix string, reqPayload, respPayload interface{}) error {
	return c.runRequest(ctx, http.MethodPut, c.actualURL(urlSuffix), reqPayload, respPayload)
}

func (c *Client) actualURL(suffix string) string {
	if strings.HasPrefix(suffix, "/") {
		return c.BaseURL + suffix
	}

	return c.BaseURL + "/" + suffix
}

func (c *Client) runRequest(ctx context.Context, method, url string, reqPayload, respPayload interface{}) error {
	payload, err := requestReader(reqPayload)
	if err != nil {
		return errors.Wrap(err, "error getting reader")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return errors.Wrap(err, "error creating request")
	}

	req.Header.Set("Accept", "application/json")

	if reqPayload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	// per-client headers override the defaults above
	for k, vals := range c.Headers {
		req.Header.Del(k)

		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "error running http request")
	}

	defer resp.Body.Close() //nolint:errcheck

	return decodeResponse(resp, respPayload)
}

func requestReader(reqPayload interface{}) (io.Reader, error) {
	if reqPayload == nil {
		return nil, nil
	}

	var b bytes.Buffer
	if err := json.NewEncoder(&b).Encode(reqPayload); err != nil {
		return nil, errors.Wrap(err, "unable to serialize JSON")
	}

	return bytes.NewReader(b.Bytes()), nil
}

func decodeResponse(resp *http.Response, respPayload interface{}) error {
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))

		return &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if respPayload == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(respPayload); err != nil {
		return errors.Wrap(err, "unable to parse JSON response")
	}

	return nil
}

// HTTPStatusError encapsulates a non-successful HTTP response.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected server response %v: %v", e.Status, e.Body)
	}

	return "unexpected server response " + e.Status
}

// Retriable reports whether the response indicates a transient condition
// worth retrying, such as rate limiting or a server-side failure.
func (e *HTTPStatusError) Retriable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// IsRetriable reports whether err is a transient HTTP error.
func IsRetriable(err error) bool {
	var hse *HTTPStatusError

	return errors.As(err, &hse) && hse.Retriable()
}

// Options encapsulates parameters for NewClient.
type Options struct {
	BaseURL   string
	Token     string // bearer token added to every request; empty disables authentication
	UserAgent string
	Timeout   time.Duration

	LogRequests bool
}

// NewClient creates a client for the JSON REST API at the given base URL.
func NewClient(options Options) (*Client, error) {
	if options.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}

	var transport = http.DefaultTransport

	if options.Token != "" {
		transport = &oauth2.Transport{
			Base:   transport,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: options.Token}),
		}
	}

	if options.LogRequests {
		transport = loggingTransport{transport}
	}

	timeout := options.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		BaseURL: strings.TrimSuffix(options.BaseURL, "/"),
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		UserAgent: options.UserAgent,
		Headers:   http.Header{},
	}, nil
}

type loggingTransport struct {
	base http.RoundTripper
}

func (t loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	timer := timetrack.StartTimer()
	resp, err := t.base.RoundTrip(req)
	dur := timer.Elapsed()

	if err != nil {
		log(req.Context()).Debugf("%v %v took %v and failed with %v", req.Method, req.URL, dur, err)
		return nil, errors.Wrap(err, "round-trip error")
	}

	log(req.Context()).Debugf("%v %v took %v and returned %v", req.Method, req.URL, dur, resp.Status)

	return resp, nil
}
