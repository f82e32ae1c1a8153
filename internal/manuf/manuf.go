// Package manuf resolves hardware addresses to manufacturer names via an
// OUI lookup service.
package manuf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NotFound is the recorded value for an address whose manufacturer could not
// be resolved. Storing it stops the recorder from retrying the lookup on
// every later sighting of the same device.
const NotFound = "not found"

// ErrNotFound reports that the lookup service has no entry for the address.
var ErrNotFound = errors.New("manufacturer not found")

// Resolver maps a hardware address to a manufacturer name.
type Resolver interface {
	Lookup(ctx context.Context, hwAddr string) (string, error)
}

// HTTPResolver queries an api.macvendors.com style endpoint: GET
// <base>/<addr> returns the vendor name as plain text, or 404 when unknown.
type HTTPResolver struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPResolver returns a resolver against baseURL with a bounded request
// timeout.
func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPResolver) Lookup(ctx context.Context, hwAddr string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/"+hwAddr, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build manufacturer request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("manufacturer lookup for %s failed: %w", hwAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("manufacturer lookup for %s returned status %d", hwAddr, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read manufacturer response: %w", err)
	}
	name := strings.TrimSpace(string(body))
	if name == "" {
		return "", ErrNotFound
	}
	return name, nil
}

// Static resolves from a fixed address-to-name table. Useful for tests and
// offline development.
type Static map[string]string

func (s Static) Lookup(_ context.Context, hwAddr string) (string, error) {
	if name, ok := s[hwAddr]; ok {
		return name, nil
	}
	return "", ErrNotFound
}
