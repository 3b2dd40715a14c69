package scrapers

import (
	"context"
	"mime"
	"net/http"
	"net/url"

	"github.com/ternarybob/imago/internal/models"
)

// rawMediaTypes is the allow-list for direct media links.
var rawMediaTypes = map[string]bool{
	"image/gif":     true,
	"image/jpeg":    true,
	"image/png":     true,
	"image/svg":     true,
	"image/svg+xml": true,
	"video/webm":    true,
}

// isRaw HEAD-probes the URL and passes when the target is a direct media
// link. This is the only classifier that costs a network round-trip.
func (s *Service) isRaw(ctx context.Context, u *url.URL) (bool, error) {
	resp, err := s.head(ctx, u.String())
	if err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false, nil
	}
	return rawMediaTypes[mediaType], nil
}

// scrapeRaw returns the input URL itself as the single media artifact.
func (s *Service) scrapeRaw(u *url.URL) (*models.ScrapeResult, error) {
	image, err := s.newImage(u)
	if err != nil {
		return nil, err
	}
	source := u.String()
	return models.Ok(models.ScrapeResultData{
		SourceURL: &source,
		Images:    []models.ScrapeImage{image},
	}), nil
}
