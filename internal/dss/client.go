// Package dss is a client for the DataScope Select REST API: token
// requests and historical chain resolution.
package dss

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const (
	// DefaultAuthURL is the DSS token endpoint.
	DefaultAuthURL = "https://hosted.datascopeapi.reuters.com/RestApi/v1/Authentication/RequestToken"
	// DefaultResolveURL is the DSS historical chain resolution endpoint.
	DefaultResolveURL = "https://hosted.datascopeapi.reuters.com/RestApi/v1/Search/HistoricalChainResolution"
	// DefaultWaitSeconds is the server-side wait requested from the resolution endpoint.
	DefaultWaitSeconds = 5
)

const contentType = "application/json; odata.metadata=minimal"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=dss_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the DataScope Select REST API.
type Client struct {
	// authURL is the token request endpoint.
	authURL string
	// resolveURL is the chain resolution endpoint.
	resolveURL string
	// waitSeconds is sent in the Prefer header of resolution requests.
	waitSeconds int
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	logger *zap.Logger
}

// ClientOption is a configuration option for the DSS client.
type ClientOption func(*Client)

// WithAuthURL sets the token request endpoint.
func WithAuthURL(authURL string) ClientOption {
	return func(c *Client) {
		c.authURL = authURL
	}
}

// WithResolveURL sets the chain resolution endpoint.
func WithResolveURL(resolveURL string) ClientOption {
	return func(c *Client) {
		c.resolveURL = resolveURL
	}
}

// WithWait sets the number of seconds the server may hold a resolution
// request open before answering. Zero or less drops the wait preference.
func WithWait(seconds int) ClientOption {
	return func(c *Client) {
		c.waitSeconds = seconds
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new DSS client.
func NewClient(options ...ClientOption) (*Client, error) {
	var client = &Client{
		authURL:     DefaultAuthURL,
		resolveURL:  DefaultResolveURL,
		waitSeconds: DefaultWaitSeconds,
		httpClient:  http.DefaultClient,
		header:      http.Header{},
		logger:      zap.NewNop(),
	}
	for _, option := range options {
		option(client)
	}
	if err := checkEndpoint(client.authURL); err != nil {
		return nil, err
	}
	if err := checkEndpoint(client.resolveURL); err != nil {
		return nil, err
	}
	if client.httpClient == nil {
		return nil, errors.New("dss: nil http client")
	}
	return client, nil
}

func checkEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint %q is not an absolute URL", raw)
	}
	return nil
}

// newRequestHeader returns the client's extra headers merged with the
// headers every DSS call carries.
func (c *Client) newRequestHeader(prefer string) http.Header {
	h := c.header.Clone()
	h.Set("Prefer", prefer)
	h.Set("Content-Type", contentType)
	return h
}
