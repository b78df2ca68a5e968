package scraper

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
)

const fetchTimeout = 30 * time.Second

// BuildURL derives the schedule page address for a (source, date) pair.
// The path template is fixed; the trailing segment is the literal
// time-of-day window the upstream sites expect.
func BuildURL(sourceKey, day string) string {
	return fmt.Sprintf("https://www.%s/showplan/%s/00-00", sourceKey, day)
}

// Fetcher retrieves schedule pages with a browser-like request profile.
// The upstream sites serve a stripped-down page to unknown user agents, so
// the full header set matters.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

func NewFetcher(userAgent, proxyURL string) (*Fetcher, error) {
	transport := &http.Transport{}

	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   fetchTimeout,
		},
		userAgent: userAgent,
	}, nil
}

// Run fetches one page. Non-2xx responses are an error carrying the status
// code; retries are the caller's concern.
func (f *Fetcher) Run(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.8,en-US;q=0.5,en;q=0.3")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return decodeBody(data, resp.Header.Get("Content-Type")), nil
}

// decodeBody converts the page to UTF-8 based on the declared charset. The
// older sites in the family still serve ISO-8859-1.
func decodeBody(data []byte, contentType string) []byte {
	if contentType == "" {
		return data
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return data
	}

	charset := params["charset"]
	if charset == "" || strings.EqualFold(charset, "utf-8") {
		return data
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return data
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}

	return decoded
}
