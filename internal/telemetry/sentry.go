// Package telemetry wires the optional Sentry sink. All capture helpers
// are no-ops when SENTRY_URL is unset.
package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ternarybob/imago/internal/common"
)

var enabled bool

// Init configures the Sentry client from SENTRY_URL. The returned flush
// function blocks briefly on shutdown so queued events are delivered.
func Init(config *common.Config) (func(), error) {
	if config.SentryURL == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              config.SentryURL,
		Release:          "imago@" + common.GetVersion(),
		TracesSampleRate: 1.0,
		SendDefaultPII:   false,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			// Never forward caller cookies, headers or the server name.
			if event.Request != nil {
				event.Request.Cookies = ""
				event.Request.Headers = nil
			}
			event.ServerName = ""
			return event
		},
	})
	if err != nil {
		return func() {}, err
	}
	enabled = true
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// CaptureError reports err with provider/url context attached.
func CaptureError(err error, tags map[string]string) {
	if !enabled || err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}
