// Package interfaces declares the service contracts the HTTP layer
// depends on.
package interfaces

import (
	"context"

	"github.com/ternarybob/imago/internal/models"
)

// ScrapeService turns a submitted URL into a normalized scrape result.
// A nil result with a nil error means no provider claimed the URL or the
// claiming provider found no media.
type ScrapeService interface {
	Scrape(ctx context.Context, url string) (*models.ScrapeResult, error)
}
