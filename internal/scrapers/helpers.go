package scrapers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ternarybob/imago/internal/camo"
	"github.com/ternarybob/imago/internal/common"
)

// Adapter responses are metadata-sized; anything bigger is upstream junk.
const maxBodySize = 8 << 20

func camoFor(config *common.Config, u *url.URL) (string, error) {
	camoURL, err := camo.URL(config, u)
	if err != nil {
		return "", fmt.Errorf("could not camo URL: %w", err)
	}
	return camoURL.String(), nil
}

// fetchBody GETs target and returns the response body.
func (s *Service) fetchBody(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}
	return body, nil
}

// fetchJSON GETs target and decodes a 2xx JSON response into out.
func (s *Service) fetchJSON(ctx context.Context, target string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("could not build request: %w", err)
	}
	return s.doJSON(req, out)
}

func (s *Service) doJSON(req *http.Request, out interface{}) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upstream returned error code %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("could not parse upstream response: %w", err)
	}
	return nil
}

// head issues a HEAD request and returns the response with its body closed.
func (s *Service) head(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}
