// Package feed loads ATT&CK STIX data from files and HTTP endpoints.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"contentmapper/internal/attack"
)

// Fetcher retrieves STIX objects from one source.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]attack.Object, error)
}

// FileFetcher reads a bundle from local disk.
type FileFetcher struct {
	Path string
}

func NewFileFetcher(path string) *FileFetcher { return &FileFetcher{Path: path} }

func (f *FileFetcher) Name() string { return "file:" + f.Path }

func (f *FileFetcher) Fetch(ctx context.Context) ([]attack.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer file.Close()
	return attack.DecodeBundle(file)
}

// HTTPFetcher downloads a bundle, e.g. the enterprise-attack.json published
// by MITRE on GitHub.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

func NewHTTPFetcher(url string) *HTTPFetcher {
	return &HTTPFetcher{URL: url, Client: &http.Client{Timeout: 60 * time.Second}}
}

func (h *HTTPFetcher) Name() string { return h.URL }

func (h *HTTPFetcher) Fetch(ctx context.Context) ([]attack.Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetching bundle: unexpected status %s", resp.Status)
	}
	return attack.DecodeBundle(resp.Body)
}

// FetcherFor picks an HTTPFetcher for http(s) URLs and a FileFetcher for
// anything else.
func FetcherFor(source string) Fetcher {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return NewHTTPFetcher(source)
	}
	return NewFileFetcher(source)
}
