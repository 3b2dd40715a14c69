package scrapers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/imago/internal/models"
)

var twitterHosts = map[string]bool{
	"twitter.com":        true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
	"x.com":              true,
}

// twitterURLRegex captures the handle and status id of a tweet URL.
var twitterURLRegex = regexp.MustCompile(`^https?://(?:www\.|mobile\.)?(?:twitter|x)\.com/([A-Za-z0-9_]+)/status/(\d+)`)

func isTwitter(u *url.URL) bool {
	return twitterHosts[u.Hostname()]
}

// scrapeTwitter selects between the HTML parsing path and the API v2 path
// via TWITTER_USE_V2.
func (s *Service) scrapeTwitter(ctx context.Context, u *url.URL) (*models.ScrapeResult, error) {
	if s.config.TwitterUseV2 {
		return s.scrapeTwitterV2(ctx, u)
	}
	return s.scrapeTwitterHTML(ctx, u)
}

// scrapeTwitterHTML parses the tweet page's Open Graph metadata.
func (s *Service) scrapeTwitterHTML(ctx context.Context, u *url.URL) (*models.ScrapeResult, error) {
	caps := twitterURLRegex.FindStringSubmatch(u.String())
	if caps == nil {
		return nil, fmt.Errorf("could not parse tweet url")
	}
	author := caps[1]

	body, err := s.fetchBody(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("tweet page request failed: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not parse tweet page: %w", err)
	}

	var images []models.ScrapeImage
	var firstErr error
	doc.Find(`meta[property="og:image"]`).Each(func(_ int, sel *goquery.Selection) {
		content, ok := sel.Attr("content")
		if !ok || content == "" || firstErr != nil {
			return
		}
		imageURL, err := url.Parse(content)
		if err != nil {
			firstErr = fmt.Errorf("tweet media URL not valid: %w", err)
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

	var description *string
	if text, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		description = models.StringPtr(text)
	}

	source := u.String()
	return models.Ok(models.ScrapeResultData{
		SourceURL:   &source,
		AuthorName:  &author,
		Description: description,
		Images:      images,
	}), nil
}

type twitterTweetResponse struct {
	Data *struct {
		Text     string  `json:"text"`
		AuthorID *string `json:"author_id"`
	} `json:"data"`
	Includes *struct {
		Media []struct {
			URL             *string `json:"url"`
			PreviewImageURL *string `json:"preview_image_url"`
		} `json:"media"`
	} `json:"includes"`
}

type twitterUserResponse struct {
	Data *struct {
		Username string `json:"username"`
	} `json:"data"`
}

// scrapeTwitterV2 fetches the tweet through the authenticated v2 API with
// media expansions plus an author lookup. Strict variant: any missing
// field means no media worth returning.
func (s *Service) scrapeTwitterV2(ctx context.Context, u *url.URL) (*models.ScrapeResult, error) {
	if s.config.TwitterAPIBearer == "" {
		return nil, fmt.Errorf("must have configured v2 api key")
	}
	caps := twitterURLRegex.FindStringSubmatch(u.String())
	if caps == nil {
		return nil, fmt.Errorf("could not parse tweet url")
	}
	statusID := caps[2]

	tweetURL := fmt.Sprintf(
		"%s/2/tweets/%s?tweet.fields=text,id,created_at,author_id,attachments&expansions=attachments.media_keys&media.fields=url,preview_image_url,media_key",
		s.twitterAPIBase, statusID,
	)
	var tweet twitterTweetResponse
	if err := s.fetchTwitterJSON(ctx, tweetURL, &tweet); err != nil {
		return nil, err
	}
	if tweet.Includes == nil || tweet.Data == nil || tweet.Data.AuthorID == nil {
		return nil, nil
	}

	userURL := fmt.Sprintf("%s/2/users/%s?user.fields=name,url,username", s.twitterAPIBase, *tweet.Data.AuthorID)
	var user twitterUserResponse
	if err := s.fetchTwitterJSON(ctx, userURL, &user); err != nil {
		return nil, err
	}
	if user.Data == nil {
		return nil, nil
	}

	var images []models.ScrapeImage
	for _, media := range tweet.Includes.Media {
		if media.URL == nil {
			continue
		}
		preview := *media.URL
		if media.PreviewImageURL != nil {
			preview = *media.PreviewImageURL
		}
		previewURL, err := url.Parse(preview)
		if err != nil {
			return nil, fmt.Errorf("invalid tweet media uri: %w", err)
		}
		camoURL, err := camoFor(s.config, previewURL)
		if err != nil {
			return nil, err
		}
		images = append(images, models.ScrapeImage{URL: *media.URL, CamoURL: camoURL})
	}
	if len(images) == 0 {
		return nil, nil
	}

	source := u.String()
	description := models.StringPtr(tweet.Data.Text)
	return models.Ok(models.ScrapeResultData{
		SourceURL:   &source,
		AuthorName:  &user.Data.Username,
		Description: description,
		Images:      images,
	}), nil
}

func (s *Service) fetchTwitterJSON(ctx context.Context, target string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.TwitterAPIBearer)
	return s.doJSON(req, out)
}
