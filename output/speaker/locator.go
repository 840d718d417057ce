// Package speaker plays tracks on the local sound card.
package speaker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

var ErrBadLocator = errors.New("locator cannot be resolved")

// Fetch returns the bytes a locator points at: a data URI, an http(s) URL,
// a file URL or a plain path.
func Fetch(ctx context.Context, locator string) ([]byte, error) {
	switch {
	case strings.HasPrefix(locator, "data:"):
		return decodeDataURI(locator)
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return fetchHTTP(ctx, locator)
	case strings.HasPrefix(locator, "file://"):
		u, err := url.Parse(locator)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadLocator, err)
		}
		return os.ReadFile(u.Path)
	default:
		return os.ReadFile(locator)
	}
}

func decodeDataURI(locator string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(locator, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: data URI without payload", ErrBadLocator)
	}
	if strings.HasSuffix(header, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadLocator, err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadLocator, err)
	}
	return []byte(s), nil
}

func fetchHTTP(ctx context.Context, locator string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadLocator, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", locator, resp.Status)
	}
	return io.ReadAll(resp.Body)
}
