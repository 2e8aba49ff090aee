package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "omnisched/internal/log"
)

// maxBodyBytes bounds remote payloads; appointment calendars are small.
const maxBodyBytes = 8 << 20

var httpClient = &http.Client{
	Timeout: 15 * time.Second,
}

// ReadSource returns the raw iCalendar payload at location, which is either
// a local file path or an http(s)/webcal URL.
func ReadSource(ctx context.Context, location string) ([]byte, error) {
	if location == "" {
		return nil, errors.New("ics source is empty")
	}

	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "webcal://"):
		return fetchURL(ctx, "https://"+location[len("webcal://"):])
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return fetchURL(ctx, location)
	}

	body, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("ics source: %w", err)
	}
	appLog.Info("ics source read", "path", location, "bytes", len(body))
	return body, nil
}

func fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Info("ics fetch start", "url", redactURL(url))

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ics fetch %s: %w", redactURL(url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics fetch %s: %s", redactURL(url), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("ics fetch %s: %w", redactURL(url), err)
	}

	appLog.Info("ics fetch success", "url", redactURL(url), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	i += len("://")

	j := strings.IndexAny(u[i:], "/?#")
	if j == -1 {
		return u + redactedSuffix
	}
	return u[:i+j] + redactedSuffix
}
