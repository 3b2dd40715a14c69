package scrapers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/ternarybob/imago/internal/models"
)

// Custom blogs point a CNAME into one of these.
var tumblrOwnedDomains = []string{
	".tumblr.com.",
	".domains.tumblr.com.",
}

var tumblrPostIDRegex = regexp.MustCompile(`^/(?:post/)?(\d+)`)

// isTumblr matches tumblr.com subdomains directly; anything else gets a
// CNAME lookup, cached per hostname. Cache entries are advisory: a stale
// false only costs one provider miss, a stale true one failed probe.
func (s *Service) isTumblr(ctx context.Context, u *url.URL) (bool, error) {
	host := u.Hostname()
	if host == "" {
		return false, nil
	}
	if host == "tumblr.com" || strings.HasSuffix(host, ".tumblr.com") {
		return true, nil
	}
	return s.dnsCache.GetOrCompute(host, func() (bool, error) {
		cname, err := s.resolver.LookupCNAME(ctx, host)
		if err != nil {
			// NXDOMAIN means "not tumblr", not "dispatch broken".
			var dnsErr *net.DNSError
			if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
				return false, nil
			}
			return false, fmt.Errorf("tumblr CNAME lookup failed: %w", err)
		}
		if !strings.HasSuffix(cname, ".") {
			cname += "."
		}
		for _, domain := range tumblrOwnedDomains {
			if strings.HasSuffix(cname, domain) {
				return true, nil
			}
		}
		return false, nil
	})
}

type tumblrAPIResponse struct {
	Response struct {
		Posts []tumblrAPIPost `json:"posts"`
	} `json:"response"`
}

type tumblrAPIPost struct {
	BlogName string   `json:"blog_name"`
	PostURL  string   `json:"post_url"`
	Caption  string   `json:"caption"`
	Tags     []string `json:"tags"`
	Photos   []struct {
		OriginalSize struct {
			URL string `json:"url"`
		} `json:"original_size"`
	} `json:"photos"`
}

// scrapeTumblr fetches the post through the Tumblr API; the caption HTML
// becomes a markdown description.
func (s *Service) scrapeTumblr(ctx context.Context, u *url.URL) (*models.ScrapeResult, error) {
	if s.config.TumblrAPIKey == "" {
		return nil, fmt.Errorf("tumblr API key not configured")
	}
	caps := tumblrPostIDRegex.FindStringSubmatch(u.Path)
	if caps == nil {
		return nil, fmt.Errorf("could not parse tumblr post url")
	}

	apiURL := fmt.Sprintf(
		"%s/v2/blog/%s/posts/photo?api_key=%s&id=%s",
		s.tumblrAPIBase, u.Hostname(), url.QueryEscape(s.config.TumblrAPIKey), caps[1],
	)
	var resp tumblrAPIResponse
	if err := s.fetchJSON(ctx, apiURL, &resp); err != nil {
		return nil, fmt.Errorf("request to tumblr failed: %w", err)
	}
	if len(resp.Response.Posts) == 0 {
		return nil, nil
	}
	post := resp.Response.Posts[0]

	var images []models.ScrapeImage
	for _, photo := range post.Photos {
		photoURL, err := url.Parse(photo.OriginalSize.URL)
		if err != nil {
			return nil, fmt.Errorf("photo URL not valid URL: %w", err)
		}
		image, err := s.newImage(photoURL)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	if len(images) == 0 {
		return nil, nil
	}

	var description *string
	if post.Caption != "" {
		converted, err := md.NewConverter("", true, nil).ConvertString(post.Caption)
		if err != nil {
			return nil, fmt.Errorf("could not convert caption: %w", err)
		}
		description = models.StringPtr(converted)
	}

	tags := append([]string(nil), post.Tags...)
	sort.Strings(tags)
	if len(tags) == 0 {
		tags = nil
	}

	source := post.PostURL
	if source == "" {
		source = u.String()
	}
	return models.Ok(models.ScrapeResultData{
		SourceURL:      &source,
		AuthorName:     models.StringPtr(post.BlogName),
		AdditionalTags: tags,
		Description:    description,
		Images:         images,
	}), nil
}
