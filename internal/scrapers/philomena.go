package scrapers

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/imago/internal/models"
)

// Philomena-family boorus currently recognized. Derpibooru today;
// extensible when further instances are wanted.
var philomenaHosts = map[string]bool{
	"derpibooru.org":     true,
	"www.derpibooru.org": true,
	"trixiebooru.org":    true,
}

// Image pages look like /images/{id}; the short form /{id} redirects there.
var philomenaImageIDRegex = regexp.MustCompile(`^/(?:images/)?(\d+)`)

func isPhilomena(u *url.URL) bool {
	return philomenaHosts[u.Hostname()]
}

type philomenaAPIResponse struct {
	Image philomenaAPIImage `json:"image"`
}

type philomenaAPIImage struct {
	Tags        []string `json:"tags"`
	SourceURL   *string  `json:"source_url"`
	Uploader    *string  `json:"uploader"`
	Description *string  `json:"description"`
	ViewURL     string   `json:"view_url"`
}

// philomenaAPIURL rewrites an image page URL to the JSON API endpoint.
func philomenaAPIURL(u *url.URL) (string, error) {
	caps := philomenaImageIDRegex.FindStringSubmatch(u.Path)
	if caps == nil {
		return "", fmt.Errorf("URL did not match and returned empty")
	}
	api := *u
	api.Path = "/api/v1/json/images/" + caps[1]
	api.RawQuery = ""
	api.Fragment = ""
	return api.String(), nil
}

func (s *Service) scrapePhilomena(ctx context.Context, u *url.URL) (*models.ScrapeResult, error) {
	apiURL, err := philomenaAPIURL(u)
	if err != nil {
		return nil, err
	}

	var resp philomenaAPIResponse
	if err := s.fetchJSON(ctx, apiURL, &resp); err != nil {
		return nil, fmt.Errorf("request to philomena failed: %w", err)
	}
	image := resp.Image

	viewURL, err := url.Parse(image.ViewURL)
	if err != nil {
		return nil, fmt.Errorf("view URL not valid URL: %w", err)
	}
	scrapeImage, err := s.newImage(viewURL)
	if err != nil {
		return nil, err
	}

	var sourceURL *string
	if image.SourceURL != nil && strings.TrimSpace(*image.SourceURL) != "" {
		if _, err := url.Parse(*image.SourceURL); err != nil {
			return nil, fmt.Errorf("source url %q: %w", *image.SourceURL, err)
		}
		sourceURL = image.SourceURL
	}

	var description *string
	if image.Description != nil {
		description = models.StringPtr(*image.Description)
	}

	var authorName *string
	var additionalTags []string
	for _, tag := range image.Tags {
		if name, ok := strings.CutPrefix(tag, "artist:"); ok {
			if authorName == nil {
				authorName = &name
			}
			continue
		}
		additionalTags = append(additionalTags, tag)
	}
	sort.Strings(additionalTags)

	return models.Ok(models.ScrapeResultData{
		SourceURL:      sourceURL,
		AuthorName:     authorName,
		AdditionalTags: additionalTags,
		Description:    description,
		Images:         []models.ScrapeImage{scrapeImage},
	}), nil
}
