package tenderapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Download fetches an export file. Relative URLs resolve against the backend
// base URL; absolute URLs on another host are fetched without the bearer token.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	target, sameHost, err := c.resolve(rawURL)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	hc := c.httpClient
	if !sameHost {
		hc = &http.Client{Timeout: c.httpClient.Timeout}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download export: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, "", &StatusError{Code: resp.StatusCode, Message: errorMessage(data), Path: req.URL.Path}
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) resolve(rawURL string) (string, bool, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || rawURL == "" {
		return "", false, fmt.Errorf("invalid download url %q", rawURL)
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", false, fmt.Errorf("invalid base url: %w", err)
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false, fmt.Errorf("unsupported download scheme %q", abs.Scheme)
	}
	return abs.String(), abs.Host == base.Host, nil
}
