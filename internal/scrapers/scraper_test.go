package scrapers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imago/internal/common"
	"github.com/ternarybob/imago/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(common.NewDefaultConfig(), arbor.NewLogger())
	require.NoError(t, err)
	return svc
}

// roundTripFunc lets a test serve canned responses for any host without
// touching the network.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func testURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestProviderString(t *testing.T) {
	assert.Equal(t, "twitter", ProviderTwitter.String())
	assert.Equal(t, "nitter", ProviderNitter.String())
	assert.Equal(t, "tumblr", ProviderTumblr.String())
	assert.Equal(t, "deviantart", ProviderDeviantArt.String())
	assert.Equal(t, "philomena", ProviderPhilomena.String())
	assert.Equal(t, "buzzly", ProviderBuzzly.String())
	assert.Equal(t, "raw", ProviderRaw.String())
	assert.Equal(t, "unknown", Provider(99).String())
}

func TestClassify_CheapProviders(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Provider
	}{
		{name: "twitter", url: "https://twitter.com/zicygomar/status/1186352194212184064", want: ProviderTwitter},
		{name: "x.com", url: "https://x.com/zicygomar/status/1186352194212184064", want: ProviderTwitter},
		{name: "mobile twitter", url: "https://mobile.twitter.com/a/status/1", want: ProviderTwitter},
		{name: "nitter instance", url: "https://nitter.net/Rexfire_Fox/status/1382064278331764738", want: ProviderNitter},
		{name: "tumblr blog", url: "https://tcn1205.tumblr.com/post/186904081532", want: ProviderTumblr},
		{name: "deviantart", url: "https://www.deviantart.com/the-park/art/Comm-Baseball-cap-derpy-833396912", want: ProviderDeviantArt},
		{name: "derpibooru", url: "https://derpibooru.org/images/1426211", want: ProviderPhilomena},
		{name: "buzzly", url: "https://buzzly.art/~koda/art/calm-flight", want: ProviderBuzzly},
	}

	svc := newTestService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := testURL(t, tt.url)
			// Pin the CNAME cache so classification stays offline.
			svc.dnsCache.Set(u.Hostname(), false)

			provider, matched, err := svc.classify(context.Background(), u)
			require.NoError(t, err)
			require.True(t, matched)
			assert.Equal(t, tt.want, provider)
		})
	}
}

func TestClassify_TieBreakPrefersLowestOrdinal(t *testing.T) {
	svc := newTestService(t)
	// Make the Nitter classifier claim x.com too; Twitter must still win.
	svc.config.PreferredNitterInstanceHost = "x.com"
	svc.dnsCache.Set("x.com", false)

	provider, matched, err := svc.classify(context.Background(), testURL(t, "https://x.com/a/status/1"))
	require.NoError(t, err)
	require.True(t, matched)
	assert.Equal(t, ProviderTwitter, provider)
}

func TestClassify_RawOnlyRunsWhenNothingElseMatched(t *testing.T) {
	var headCount atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			headCount.Add(1)
		}
		w.Header().Set("Content-Type", "image/png")
	}))
	defer ts.Close()

	svc := newTestService(t)
	u := testURL(t, ts.URL+"/img/view/4010154.png")
	svc.dnsCache.Set(u.Hostname(), false)

	provider, matched, err := svc.classify(context.Background(), u)
	require.NoError(t, err)
	require.True(t, matched)
	assert.Equal(t, ProviderRaw, provider)
	assert.Equal(t, int32(1), headCount.Load())

	// A URL a cheap classifier claims must never reach the probe.
	headCount.Store(0)
	svc.dnsCache.Set("derpibooru.org", false)
	provider, matched, err = svc.classify(context.Background(), testURL(t, "https://derpibooru.org/1426211"))
	require.NoError(t, err)
	require.True(t, matched)
	assert.Equal(t, ProviderPhilomena, provider)
	assert.Equal(t, int32(0), headCount.Load())
}

func TestClassify_NoMatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	}))
	defer ts.Close()

	svc := newTestService(t)
	u := testURL(t, ts.URL+"/about")
	svc.dnsCache.Set(u.Hostname(), false)

	_, matched, err := svc.classify(context.Background(), u)
	require.NoError(t, err)
	assert.False(t, matched)
}

func TestScrape_RejectsUnparsableURL(t *testing.T) {
	svc := newTestService(t)

	tests := []string{
		"",
		"derpibooru.org/images/1426211",
		"http://bad url with spaces",
	}
	for _, raw := range tests {
		_, err := svc.Scrape(context.Background(), raw)
		require.Error(t, err, "input %q", raw)
		assert.Contains(t, err.Error(), "could not parse URL for scraper")
	}
}

func TestScrape_CachesResults(t *testing.T) {
	var requests atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "image/png")
	}))
	defer ts.Close()

	svc := newTestService(t)
	rawURL := ts.URL + "/img/view/4010154.png"
	svc.dnsCache.Set(testURL(t, rawURL).Hostname(), false)

	first, err := svc.Scrape(context.Background(), rawURL)
	require.NoError(t, err)
	require.NotNil(t, first.Data)
	require.Len(t, first.Data.Images, 1)
	assert.Equal(t, rawURL, first.Data.Images[0].URL)
	assert.Equal(t, rawURL, *first.Data.SourceURL)
	upstreamHits := requests.Load()

	second, err := svc.Scrape(context.Background(), rawURL)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, upstreamHits, requests.Load(), "second request must be served from cache")
}

func TestScrape_CoalescesConcurrentCallers(t *testing.T) {
	var headCount atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			headCount.Add(1)
			time.Sleep(100 * time.Millisecond)
		}
		w.Header().Set("Content-Type", "image/png")
	}))
	defer ts.Close()

	svc := newTestService(t)
	rawURL := ts.URL + "/img/view/4010154.png"
	svc.dnsCache.Set(testURL(t, rawURL).Hostname(), false)

	const callers = 100
	results := make([]*models.ScrapeResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Scrape(context.Background(), rawURL)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), headCount.Load(), "concurrent callers must share one upstream scrape")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestInvalidateResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
	}))
	defer ts.Close()

	svc := newTestService(t)
	rawURL := ts.URL + "/img.png"
	svc.dnsCache.Set(testURL(t, rawURL).Hostname(), false)

	_, err := svc.Scrape(context.Background(), rawURL)
	require.NoError(t, err)

	removed := svc.InvalidateResults(func(url string, _ *models.ScrapeResult) bool {
		return url == rawURL
	})
	assert.Equal(t, 1, removed)
}
