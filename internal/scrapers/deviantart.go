package scrapers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/imago/internal/models"
)

// The DeviantArt adapter is regex-driven against page HTML; these are
// expected to break when DeviantArt reskins, so they are named and
// fixture-tested.
var (
	daImageRegex  = regexp.MustCompile(`data-rh="true" rel="preload" href="([^"]*)" as="image"`)
	daSourceRegex = regexp.MustCompile(`rel="canonical" href="([^"]*)"`)
	daArtistRegex = regexp.MustCompile(`https://www.deviantart.com/([^/]*)/art`)
	daSerialRegex = regexp.MustCompile(`https://www.deviantart.com/(?:.*?)-(\d+)\z`)
	daCDNRegex    = regexp.MustCompile(`(https://images-wixmp-[0-9a-f]+.wixmp.com)(?:/intermediary)?/f/([^/]*)/([^/?]*)`)
	daPNGRegex    = regexp.MustCompile(`(https://[0-9a-z\-\.]+(?:/intermediary)?/f/[0-9a-f\-]+/[0-9a-z\-]+\.png/v1/fill/[0-9a-z_,]+/[0-9a-z_\-]+)(\.png)(.*)`)
	daJPGRegex    = regexp.MustCompile(`(https://[0-9a-z\-\.]+(?:/intermediary)?/f/[0-9a-f\-]+/[0-9a-z\-]+\.jpg/v1/fill/w_[0-9]+,h_[0-9]+,q_)([0-9]+)(,[a-z]+/[a-z0-6_\-]+\.jpe?g.*)`)
)

func isDeviantArt(u *url.URL) bool {
	host := u.Hostname()
	return host == "deviantart.com" || strings.HasSuffix(host, ".deviantart.com")
}

// scrapeDeviantArt runs the multi-step refinement pipeline: initial page
// extraction, then three hi-res discovery passes that append candidate
// images without replacing the original.
func (s *Service) scrapeDeviantArt(ctx context.Context, u *url.URL) (*models.ScrapeResult, error) {
	body, err := s.fetchBody(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("image request failed: %w", err)
	}

	data, seedCamo, err := s.extractDeviantArtData(string(body))
	if err != nil {
		return nil, fmt.Errorf("could not extract DA page data: %w", err)
	}

	images, err := tryNewHires(data.Images)
	if err != nil {
		return nil, err
	}
	images, err = s.tryIntermediaryHires(ctx, images)
	if err != nil {
		return nil, err
	}
	if data.SourceURL == nil {
		return nil, fmt.Errorf("had no source url")
	}
	images, err = s.tryOldHires(ctx, *data.SourceURL, images, seedCamo)
	if err != nil {
		return nil, fmt.Errorf("old_hires conversion failed: %w", err)
	}

	data.Images = images
	return models.Ok(*data), nil
}

// extractDeviantArtData pulls the preload image, canonical source and
// artist slug out of the page; any miss is a fatal adapter error.
func (s *Service) extractDeviantArtData(body string) (*models.ScrapeResultData, string, error) {
	imageCaps := daImageRegex.FindStringSubmatch(body)
	if imageCaps == nil {
		return nil, "", fmt.Errorf("no image found")
	}
	sourceCaps := daSourceRegex.FindStringSubmatch(body)
	if sourceCaps == nil {
		return nil, "", fmt.Errorf("no source found")
	}
	artistCaps := daArtistRegex.FindStringSubmatch(sourceCaps[1])
	if artistCaps == nil {
		return nil, "", fmt.Errorf("no artist found")
	}

	imageURL, err := url.Parse(imageCaps[1])
	if err != nil {
		return nil, "", fmt.Errorf("image URL not valid URL: %w", err)
	}
	if _, err := url.Parse(sourceCaps[1]); err != nil {
		return nil, "", fmt.Errorf("source URL not valid URL: %w", err)
	}

	image, err := s.newImage(imageURL)
	if err != nil {
		return nil, "", err
	}

	source := sourceCaps[1]
	artist := artistCaps[1]
	return &models.ScrapeResultData{
		SourceURL:  &source,
		AuthorName: &artist,
		Images:     []models.ScrapeImage{image},
	}, image.CamoURL, nil
}

// tryNewHires appends higher-fidelity wixmp variants: the raw-quality PNG
// original (variant segment stripped) and the q_100 JPG. Appended images
// reuse the camo URL of the seed they derive from.
func tryNewHires(images []models.ScrapeImage) ([]models.ScrapeImage, error) {
	for _, image := range append([]models.ScrapeImage(nil), images...) {
		oldURL := image.URL
		if daPNGRegex.MatchString(oldURL) {
			newURL := daPNGRegex.ReplaceAllString(oldURL, "${1}.png${3}")
			if _, err := url.Parse(newURL); err != nil {
				return nil, fmt.Errorf("could not parse png url: %w", err)
			}
			images = append(images, models.ScrapeImage{URL: newURL, CamoURL: image.CamoURL})
		}
		if daJPGRegex.MatchString(oldURL) {
			newURL := daJPGRegex.ReplaceAllString(oldURL, "${1}100${3}")
			if _, err := url.Parse(newURL); err != nil {
				return nil, fmt.Errorf("could not parse jpeg url: %w", err)
			}
			images = append(images, models.ScrapeImage{URL: newURL, CamoURL: image.CamoURL})
		}
	}
	return images, nil
}

// tryIntermediaryHires derives {domain}/intermediary/{uuid}/{filename}
// for each wixmp image and appends it when the CDN confirms it exists.
func (s *Service) tryIntermediaryHires(ctx context.Context, images []models.ScrapeImage) ([]models.ScrapeImage, error) {
	for _, image := range append([]models.ScrapeImage(nil), images...) {
		caps := daCDNRegex.FindStringSubmatch(image.URL)
		if caps == nil {
			continue
		}
		builtURL := fmt.Sprintf("%s/intermediary/%s/%s", caps[1], caps[2], caps[3])
		resp, err := s.head(ctx, builtURL)
		if err != nil {
			return nil, fmt.Errorf("HEAD request to DA URL failed: %w", err)
		}
		if resp.StatusCode == http.StatusOK {
			images = append(images, models.ScrapeImage{URL: builtURL, CamoURL: image.CamoURL})
		}
	}
	return images, nil
}

// tryOldHires recovers originals that predate the wixmp CDN: the source
// URL's trailing serial in base36 addresses the legacy orig server, whose
// redirect target is the full-resolution file.
func (s *Service) tryOldHires(ctx context.Context, sourceURL string, images []models.ScrapeImage, seedCamo string) ([]models.ScrapeImage, error) {
	caps := daSerialRegex.FindStringSubmatch(sourceURL)
	if caps == nil {
		return nil, fmt.Errorf("no serial captured")
	}
	serial, err := strconv.ParseInt(caps[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("integer could not be parsed: %w", err)
	}
	base36 := strconv.FormatInt(serial, 36)

	builtURL := fmt.Sprintf("%s/x_by_x-d%s.png", s.oldHiresBase, base36)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, builtURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not build old hires request: %w", err)
	}
	// The client never follows redirects; the Location header is the
	// interesting part of this response.
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("old hires request failed: %w", err)
	}
	resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return images, nil
	}
	if _, err := url.Parse(location); err != nil {
		return nil, fmt.Errorf("new old_hires location is not valid URL: %w", err)
	}
	return append(images, models.ScrapeImage{URL: location, CamoURL: seedCamo}), nil
}
