package scrapers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/imago/internal/models"
)

var buzzlyHosts = map[string]bool{
	"buzzly.art":     true,
	"www.buzzly.art": true,
}

// Submission pages live at /~{artist}/art/{slug}.
var buzzlyPathRegex = regexp.MustCompile(`^/~([^/]+)/art/([^/]+)`)

func isBuzzly(u *url.URL) bool {
	return buzzlyHosts[u.Hostname()]
}

// scrapeBuzzly extracts the submission's Open Graph metadata; the artist
// comes from the URL path.
func (s *Service) scrapeBuzzly(ctx context.Context, u *url.URL) (*models.ScrapeResult, error) {
	caps := buzzlyPathRegex.FindStringSubmatch(u.Path)
	if caps == nil {
		return nil, nil
	}
	author := caps[1]

	body, err := s.fetchBody(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("submission page request failed: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not parse submission page: %w", err)
	}

	content, ok := doc.Find(`meta[property="og:image"]`).Attr("content")
	if !ok || content == "" {
		return nil, nil
	}
	imageURL, err := url.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("submission image URL not valid: %w", err)
	}
	image, err := s.newImage(imageURL)
	if err != nil {
		return nil, err
	}

	var description *string
	if text, found := doc.Find(`meta[property="og:description"]`).Attr("content"); found {
		description = models.StringPtr(text)
	}

	source := u.String()
	return models.Ok(models.ScrapeResultData{
		SourceURL:   &source,
		AuthorName:  &author,
		Description: description,
		Images:      []models.ScrapeImage{image},
	}), nil
}
