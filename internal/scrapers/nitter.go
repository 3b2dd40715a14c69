package scrapers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/imago/internal/models"
)

// Known public Nitter instances. PREFERRED_NITTER_INSTANCE_HOST adds one
// more at runtime for self-hosters.
var nitterHosts = map[string]bool{
	"nitter.net":             true,
	"nitter.lacontrevoie.fr": true,
	"nitter.fdn.fr":          true,
	"nitter.1d4.us":          true,
	"nitter.kavin.rocks":     true,
	"nitter.unixfox.eu":      true,
	"nitter.domain.glass":    true,
	"nitter.namazso.eu":      true,
	"nitter.moomoo.me":       true,
	"birdsite.xanny.family":  true,
}

func (s *Service) isNitter(u *url.URL) bool {
	host := u.Hostname()
	if nitterHosts[host] {
		return true
	}
	return s.config.PreferredNitterInstanceHost != "" && host == s.config.PreferredNitterInstanceHost
}

// scrapeNitter parses the mirror's tweet page DOM.
func (s *Service) scrapeNitter(ctx context.Context, u *url.URL) (*models.ScrapeResult, error) {
	body, err := s.fetchBody(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("nitter page request failed: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not parse nitter page: %w", err)
	}

	tweet := doc.Find(".main-tweet")
	if tweet.Length() == 0 {
		return nil, nil
	}

	var images []models.ScrapeImage
	var firstErr error
	tweet.Find(".attachments .still-image").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || firstErr != nil {
			return
		}
		imageURL, err := u.Parse(href)
		if err != nil {
			firstErr = fmt.Errorf("attachment URL not valid: %w", err)
			return
		}
		image, err := s.newImage(imageURL)
		if err != nil {
			firstErr = err
			return
		}
		images = append(images, image)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	if len(images) == 0 {
		return nil, nil
	}

	var authorName *string
	if name := strings.TrimSpace(tweet.Find(".fullname").First().Text()); name != "" {
		authorName = &name
	}
	description := models.StringPtr(tweet.Find(".tweet-content").First().Text())

	source := u.String()
	return models.Ok(models.ScrapeResultData{
		SourceURL:   &source,
		AuthorName:  authorName,
		Description: description,
		Images:      images,
	}), nil
}
