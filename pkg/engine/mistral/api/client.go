package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/security"
)

const providerName = "mistralai"

// Client talks to the Mistral AI REST API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	BaseURL    string
	UserAgent  string
}

func NewClient(httpClient *http.Client, apiKey string, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) newRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	if err := security.ValidateOutboundURL(c.BaseURL, security.OutboundURLOptions{AllowHTTP: true, AllowLocalNetworks: true}); err != nil {
		return nil, errors.Wrap(err, "invalid mistral base URL")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	return req, nil
}

// do sends req and returns the response when it is a 2xx.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	// #nosec G704 -- URL is validated in newRequest.
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)
		return nil, engine.NewProviderError(providerName, resp)
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func decode(resp *http.Response, v interface{}) error {
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(err, "could not decode mistral response")
	}
	return nil
}
