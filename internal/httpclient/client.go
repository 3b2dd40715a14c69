// Package httpclient builds the outbound HTTP clients used by every
// provider adapter and classifier.
package httpclient

import (
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"

	"github.com/ternarybob/imago/internal/common"
)

const (
	// Some providers gate on the user agent; keep it fixed.
	userAgent = "curl/7.83.1"

	requestTimeout = 5000 * time.Millisecond
	connectTimeout = 2500 * time.Millisecond
)

// RedirectPolicy controls how a client treats 3xx responses.
type RedirectPolicy func(req *http.Request, via []*http.Request) error

// NoRedirects stops at the first response. The DeviantArt old-hires probe
// depends on seeing the Location header itself.
func NoRedirects(req *http.Request, via []*http.Request) error {
	return http.ErrUseLastResponse
}

// LimitedRedirects follows at most max redirects.
func LimitedRedirects(max int) RedirectPolicy {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}

// New builds the default scraping client: no redirects, cookie jar,
// fixed user agent, 5s/2.5s timeouts and the configured proxy.
func New(config *common.Config, logger arbor.ILogger) (*http.Client, error) {
	return NewWithRedirectPolicy(config, logger, NoRedirects)
}

// NewWithRedirectPolicy builds a client with an explicit redirect policy.
func NewWithRedirectPolicy(config *common.Config, logger arbor.ILogger, policy RedirectPolicy) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport, err := newTransport(config)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Timeout:       requestTimeout,
		Jar:           jar,
		CheckRedirect: policy,
		Transport: &loggingTransport{
			next:   transport,
			logger: logger,
		},
	}, nil
}

func newTransport(config *common.Config) (*http.Transport, error) {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}

	if config.ProxyURL == "" {
		return transport, nil
	}

	proxyURL, err := url.Parse(config.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("could not parse proxy URL: %w", err)
	}
	switch proxyURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	case "socks", "socks5":
		var auth *proxy.Auth
		if user := proxyURL.User; user != nil {
			password, _ := user.Password()
			auth = &proxy.Auth{User: user.Username(), Password: password}
		}
		socks, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("could not create socks proxy dialer: %w", err)
		}
		contextDialer, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks proxy dialer does not support contexts")
		}
		transport.DialContext = contextDialer.DialContext
	default:
		return nil, fmt.Errorf("unknown client proxy protocol, specify http, https, socks or socks5")
	}
	return transport, nil
}

// loggingTransport records a span-style event per outbound request.
type loggingTransport struct {
	next   http.RoundTripper
	logger arbor.ILogger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start)

	event := t.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Dur("duration", duration)
	if err != nil {
		event.Err(err).Msg("Outbound request failed")
		return nil, err
	}
	event.Int("status", resp.StatusCode).Msg("Outbound request")
	return resp, nil
}
