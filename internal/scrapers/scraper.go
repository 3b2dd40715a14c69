// Package scrapers implements the provider-dispatch engine and the
// per-provider adapters that turn a submitted URL into a normalized
// scrape result.
package scrapers

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/imago/internal/cache"
	"github.com/ternarybob/imago/internal/common"
	"github.com/ternarybob/imago/internal/httpclient"
	"github.com/ternarybob/imago/internal/models"
	"github.com/ternarybob/imago/internal/telemetry"
)

// Provider identifies which adapter owns a URL. The declaration order is
// the canonical tie-break order: when several classifiers claim a URL the
// lowest ordinal wins.
type Provider int

const (
	ProviderTwitter Provider = iota
	ProviderNitter
	ProviderTumblr
	ProviderDeviantArt
	ProviderPhilomena
	ProviderBuzzly
	ProviderRaw
)

func (p Provider) String() string {
	switch p {
	case ProviderTwitter:
		return "twitter"
	case ProviderNitter:
		return "nitter"
	case ProviderTumblr:
		return "tumblr"
	case ProviderDeviantArt:
		return "deviantart"
	case ProviderPhilomena:
		return "philomena"
	case ProviderBuzzly:
		return "buzzly"
	case ProviderRaw:
		return "raw"
	default:
		return "unknown"
	}
}

const (
	cacheCapacity = 1000
	cacheTTL      = 100 * time.Minute
	cacheTTI      = 10 * time.Minute
)

// Service runs scrapes: result-cache lookup, provider dispatch, adapter
// execution. One instance lives for the process lifetime.
type Service struct {
	config      *common.Config
	logger      arbor.ILogger
	client      *http.Client
	resultCache *cache.Cache[*models.ScrapeResult]
	dnsCache    *cache.Cache[bool]
	resolver    *net.Resolver

	// Overridable in tests.
	oldHiresBase   string
	twitterAPIBase string
	tumblrAPIBase  string
}

// NewService creates the scrape service with both process caches.
func NewService(config *common.Config, logger arbor.ILogger) (*Service, error) {
	client, err := httpclient.New(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP client: %w", err)
	}
	resultCache, err := cache.New[*models.ScrapeResult](cacheCapacity, cacheTTL, cacheTTI)
	if err != nil {
		return nil, fmt.Errorf("failed to build result cache: %w", err)
	}
	dnsCache, err := cache.New[bool](cacheCapacity, cacheTTL, cacheTTI)
	if err != nil {
		return nil, fmt.Errorf("failed to build DNS cache: %w", err)
	}
	return &Service{
		config:         config,
		logger:         logger,
		client:         client,
		resultCache:    resultCache,
		dnsCache:       dnsCache,
		resolver:       net.DefaultResolver,
		oldHiresBase:   "http://orig01.deviantart.net",
		twitterAPIBase: "https://api.twitter.com",
		tumblrAPIBase:  "https://api.tumblr.com",
	}, nil
}

// Scrape resolves rawURL through the result cache. Concurrent callers for
// the same URL share one scrape; errors are shared with the waiter set but
// not cached, so a later request retries.
func (s *Service) Scrape(ctx context.Context, rawURL string) (*models.ScrapeResult, error) {
	return s.resultCache.GetOrCompute(rawURL, func() (*models.ScrapeResult, error) {
		// The scrape outlives a disconnected caller on purpose: the
		// result is useful to the next identical request.
		return s.scrapeUncached(context.WithoutCancel(ctx), rawURL)
	})
}

// InvalidateResults drops cached results matching the predicate.
func (s *Service) InvalidateResults(pred func(url string, result *models.ScrapeResult) bool) int {
	return s.resultCache.InvalidateIf(pred)
}

func (s *Service) scrapeUncached(ctx context.Context, rawURL string) (*models.ScrapeResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		if err == nil {
			err = fmt.Errorf("URL is not absolute")
		}
		return nil, fmt.Errorf("could not parse URL for scraper: %w", err)
	}

	provider, matched, err := s.classify(ctx, u)
	if err != nil {
		telemetry.CaptureError(err, map[string]string{"url": rawURL})
		return nil, err
	}
	if !matched {
		s.logger.Debug().Str("url", rawURL).Msg("No provider matched")
		return nil, nil
	}

	s.logger.Debug().
		Str("url", rawURL).
		Str("provider", provider.String()).
		Msg("Dispatching scrape")

	result, err := s.execute(ctx, provider, u)
	if err != nil {
		telemetry.CaptureError(err, map[string]string{
			"url":     rawURL,
			"scraper": provider.String(),
		})
		return nil, err
	}
	return result, nil
}

// classify fans the cheap classifiers out concurrently (wait for all,
// fail fast on first error) and picks the winner by canonical order. The
// Raw classifier always costs a network round-trip, so it only runs when
// nothing else matched.
func (s *Service) classify(ctx context.Context, u *url.URL) (Provider, bool, error) {
	var matches [ProviderRaw]bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		matches[ProviderTwitter] = isTwitter(u)
		return nil
	})
	g.Go(func() error {
		matches[ProviderNitter] = s.isNitter(u)
		return nil
	})
	g.Go(func() error {
		matched, err := s.isTumblr(gctx, u)
		matches[ProviderTumblr] = matched
		return err
	})
	g.Go(func() error {
		matches[ProviderDeviantArt] = isDeviantArt(u)
		return nil
	})
	g.Go(func() error {
		matches[ProviderPhilomena] = isPhilomena(u)
		return nil
	})
	g.Go(func() error {
		matches[ProviderBuzzly] = isBuzzly(u)
		return nil
	})
	if err := g.Wait(); err != nil {
		return 0, false, err
	}

	for provider, matched := range matches {
		if matched {
			return Provider(provider), true, nil
		}
	}

	matched, err := s.isRaw(ctx, u)
	if err != nil {
		return 0, false, err
	}
	return ProviderRaw, matched, nil
}

func (s *Service) execute(ctx context.Context, provider Provider, u *url.URL) (*models.ScrapeResult, error) {
	var (
		result *models.ScrapeResult
		err    error
	)
	switch provider {
	case ProviderTwitter:
		result, err = s.scrapeTwitter(ctx, u)
		err = wrapProvider("Twitter", err)
	case ProviderNitter:
		result, err = s.scrapeNitter(ctx, u)
		err = wrapProvider("Nitter", err)
	case ProviderTumblr:
		result, err = s.scrapeTumblr(ctx, u)
		err = wrapProvider("Tumblr", err)
	case ProviderDeviantArt:
		result, err = s.scrapeDeviantArt(ctx, u)
		err = wrapProvider("DeviantArt", err)
	case ProviderPhilomena:
		result, err = s.scrapePhilomena(ctx, u)
		err = wrapProvider("Philomena", err)
	case ProviderBuzzly:
		result, err = s.scrapeBuzzly(ctx, u)
		err = wrapProvider("Buzzly", err)
	case ProviderRaw:
		result, err = s.scrapeRaw(u)
		err = wrapProvider("Raw", err)
	default:
		err = fmt.Errorf("unknown provider %d", provider)
	}
	return result, err
}

func wrapProvider(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s parser failed: %w", name, err)
}

// newImage pairs an upstream URL with its derived camo URL.
func (s *Service) newImage(u *url.URL) (models.ScrapeImage, error) {
	camoURL, err := camoFor(s.config, u)
	if err != nil {
		return models.ScrapeImage{}, err
	}
	return models.ScrapeImage{URL: u.String(), CamoURL: camoURL}, nil
}
