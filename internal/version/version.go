// Package version compares the running build against the latest published
// release.
package version

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mahirjain10/go-assets/internal/utils"
)

// Current is the running build's version, set with
// -ldflags "-X github.com/mahirjain10/go-assets/internal/version.Current=v1.2.3".
var Current = "dev"

var (
	ErrServiceUnavailable = errors.New("couldn't verify for update")
	ErrNoURL              = errors.New("no release url configured")
)

type release struct {
	TagName string `json:"tag_name"`
}

type Checker struct {
	client  *http.Client
	url     string
	current string
}

func NewChecker(client *http.Client, url, current string) *Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return &Checker{client: client, url: url, current: current}
}

// Check returns the latest release tag when it differs from the running
// version and "" when there is nothing newer to report.
func (c *Checker) Check(ctx context.Context) (string, error) {
	if c.url == "" {
		return "", fmt.Errorf("%w: %w", ErrServiceUnavailable, ErrNoURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s returned %d", ErrServiceUnavailable, c.url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	var rel release
	if err := utils.ParseJSON(body, &rel); err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if rel.TagName == "" {
		return "", fmt.Errorf("%w: release has no tag_name", ErrServiceUnavailable)
	}
	if rel.TagName == c.current {
		return "", nil
	}
	return rel.TagName, nil
}
